package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultDocPath = "settings/app"

// FirestoreProvider reads the settings document, settings/app by default.
type FirestoreProvider struct {
	ref *firestore.DocumentRef
}

var (
	_ Provider  = (*FirestoreProvider)(nil)
	_ Watchable = (*FirestoreProvider)(nil)
)

// NewFirestoreProvider constructs a provider for docPath.
func NewFirestoreProvider(client *firestore.Client, docPath string) (*FirestoreProvider, error) {
	if client == nil {
		return nil, errors.New("settings: firestore client is required")
	}
	docPath = strings.Trim(strings.TrimSpace(docPath), "/")
	if docPath == "" {
		docPath = defaultDocPath
	}
	ref := client.Doc(docPath)
	if ref == nil {
		return nil, fmt.Errorf("settings: invalid document path %q", docPath)
	}
	return &FirestoreProvider{ref: ref}, nil
}

func (p *FirestoreProvider) AppSettings(ctx context.Context) (AppSettings, error) {
	snap, err := p.ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return AppSettings{}, nil
		}
		return AppSettings{}, fmt.Errorf("settings: get %s: %w", p.ref.Path, err)
	}
	return decodeSnapshot(snap)
}

// Watch streams document snapshots to fn until ctx ends or the stream fails.
func (p *FirestoreProvider) Watch(ctx context.Context, fn func(AppSettings, error)) error {
	iter := p.ref.Snapshots(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if status.Code(err) == codes.Canceled {
				return ctx.Err()
			}
			err = fmt.Errorf("settings: watch %s: %w", p.ref.Path, err)
			fn(AppSettings{}, err)
			return err
		}
		if !snap.Exists() {
			fn(AppSettings{}, nil)
			continue
		}
		fn(decodeSnapshot(snap))
	}
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (AppSettings, error) {
	var s AppSettings
	if err := snap.DataTo(&s); err != nil {
		return AppSettings{}, fmt.Errorf("settings: decode %s: %w", snap.Ref.Path, err)
	}
	return s, nil
}
