package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultProfilesCollection  = "profiles"
	defaultAllowListCollection = "admin_allowlist"
	defaultListLimit           = 50
)

// FirestoreConfig names the collections backing profiles and the allow-list.
type FirestoreConfig struct {
	ProfilesCollection  string
	AllowListCollection string
}

// FirestoreStore reads profiles from profiles/{uid} and admin eligibility from
// admin_allowlist/{uid}.
type FirestoreStore struct {
	client    *firestore.Client
	profiles  string
	allowList string
}

var (
	_ ProfileStore   = (*FirestoreStore)(nil)
	_ AdminDirectory = (*FirestoreStore)(nil)
)

type allowListDocument struct {
	Active bool   `firestore:"active"`
	Note   string `firestore:"note"`
}

// NewFirestoreStore constructs a store over client.
func NewFirestoreStore(client *firestore.Client, cfg FirestoreConfig) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("session: firestore client is required")
	}
	profiles := strings.TrimSpace(cfg.ProfilesCollection)
	if profiles == "" {
		profiles = defaultProfilesCollection
	}
	allowList := strings.TrimSpace(cfg.AllowListCollection)
	if allowList == "" {
		allowList = defaultAllowListCollection
	}
	return &FirestoreStore{client: client, profiles: profiles, allowList: allowList}, nil
}

func (s *FirestoreStore) Profile(ctx context.Context, uid string) (*Profile, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, nil
	}
	snap, err := s.client.Collection(s.profiles).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("session: get profile %s: %w", uid, err)
	}
	var profile Profile
	if err := snap.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("session: decode profile %s: %w", uid, err)
	}
	profile.UID = snap.Ref.ID
	return &profile, nil
}

func (s *FirestoreStore) IsAdmin(ctx context.Context, uid string) (bool, error) {
	if strings.TrimSpace(uid) == "" {
		return false, nil
	}
	snap, err := s.client.Collection(s.allowList).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("session: get allow-list entry %s: %w", uid, err)
	}
	var doc allowListDocument
	if err := snap.DataTo(&doc); err != nil {
		return false, fmt.Errorf("session: decode allow-list entry %s: %w", uid, err)
	}
	return doc.Active, nil
}

// ListProfiles returns profiles ordered by most recent update.
func (s *FirestoreStore) ListProfiles(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	iter := s.client.Collection(s.profiles).
		OrderBy("updatedAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var out []Profile
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("session: list profiles: %w", err)
		}
		var profile Profile
		if err := snap.DataTo(&profile); err != nil {
			return nil, fmt.Errorf("session: decode profile %s: %w", snap.Ref.ID, err)
		}
		profile.UID = snap.Ref.ID
		out = append(out, profile)
	}
	return out, nil
}
