package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
)

const membersPageSize = 25

// MemberLister lists member profiles for the admin console.
type MemberLister interface {
	ListProfiles(ctx context.Context, limit int) ([]session.Profile, error)
}

// AdminMembers renders the most recently updated members. A nil lister
// renders an empty table.
func AdminMembers(lister MemberLister) Factory {
	return func(c Context) templ.Component {
		return section(c.t("page.admin_members.title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			var members []session.Profile
			if lister != nil {
				var err error
				members, err = lister.ListProfiles(ctx, membersPageSize)
				if err != nil {
					return fmt.Errorf("list members: %w", err)
				}
			}
			if _, err := io.WriteString(w, `<table class="members"><tbody>`); err != nil {
				return err
			}
			for _, m := range members {
				complete := "incomplete"
				if session.ProfileComplete(&m) {
					complete = "complete"
				}
				if _, err := fmt.Fprintf(w, `<tr data-uid="%s"><td>%s</td><td>%s</td><td>%s</td></tr>`,
					templ.EscapeString(m.UID),
					templ.EscapeString(m.FullName),
					templ.EscapeString(m.Role),
					complete,
				); err != nil {
					return err
				}
			}
			_, err := io.WriteString(w, "</tbody></table>")
			return err
		}))
	}
}
