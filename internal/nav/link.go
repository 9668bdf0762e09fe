package nav

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// AppTarget is the element htmx swaps on in-app navigation.
const AppTarget = "#app"

// LinkAttrs returns the attributes that turn an anchor into an in-app
// navigation: htmx fetches the target into the app root and pushes the URL
// instead of the browser doing a full reload.
func LinkAttrs(href string) templ.Attributes {
	return templ.Attributes{
		"href":        href,
		"hx-get":      href,
		"hx-target":   AppTarget,
		"hx-select":   AppTarget,
		"hx-swap":     "outerHTML",
		"hx-push-url": "true",
	}
}

var linkAttrOrder = []string{"href", "hx-get", "hx-target", "hx-select", "hx-swap", "hx-push-url"}

// Link renders an in-app anchor around body.
func Link(href, class string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<a"); err != nil {
			return err
		}
		if class != "" {
			if _, err := io.WriteString(w, ` class="`+templ.EscapeString(class)+`"`); err != nil {
				return err
			}
		}
		attrs := LinkAttrs(href)
		for _, key := range linkAttrOrder {
			val, _ := attrs[key].(string)
			if _, err := io.WriteString(w, " "+key+`="`+templ.EscapeString(val)+`"`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, ">"); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</a>")
		return err
	})
}

// TextLink renders an in-app anchor with an escaped text label.
func TextLink(href, class, label string) templ.Component {
	return Link(href, class, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(label))
		return err
	}))
}
