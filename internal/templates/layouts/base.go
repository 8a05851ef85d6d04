package layouts

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Base wraps page content in the site shell: head, navigation and footer.
// Navigation depends on whether the request is authenticated.
func Base(title string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := NewWriter(w)

		hw.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.Raw(`<title>`)
		hw.Text(title)
		hw.Raw(` · Secrets</title><link rel="stylesheet" href="/static/styles.css"></head><body>`)

		hw.Raw(`<nav><a href="/" class="brand">Secrets</a><ul>`)
		navLink(ctx, hw, "/secrets", "Board")
		if IsAuthenticated(ctx) {
			navLink(ctx, hw, "/submit", "Submit a secret")
			navLink(ctx, hw, "/logout", "Log out")
		} else {
			navLink(ctx, hw, "/login", "Log in")
			navLink(ctx, hw, "/register", "Register")
		}
		hw.Raw(`</ul></nav><main>`)

		hw.Component(ctx, content)

		hw.Raw(`</main><footer><p>Don't keep your secrets, share them anonymously!</p></footer></body></html>`)
		return hw.Err()
	})
}

func navLink(ctx context.Context, hw *Writer, href, label string) {
	hw.Raw(`<li><a href="`)
	hw.Text(href)
	hw.Raw(`"`)
	if GetActivePath(ctx) == href {
		hw.Raw(` aria-current="page"`)
	}
	hw.Raw(`>`)
	hw.Text(label)
	hw.Raw(`</a></li>`)
}
