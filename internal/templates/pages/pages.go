// Package pages holds the standalone pages that belong to no plugin: the
// landing page and the error page used by the Echo error handler.
package pages

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/secrets/internal/templates/layouts"
)

// Landing renders the anonymous home page (GET /).
func Landing() templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := layouts.NewWriter(w)
		hw.Raw(`<section class="hero"><h1>Secrets</h1>`)
		hw.Raw(`<p>Don't keep your secrets, share them anonymously!</p>`)
		if layouts.IsAuthenticated(ctx) {
			hw.Raw(`<a class="button" href="/submit">Submit a secret</a>`)
		} else {
			hw.Raw(`<a class="button" href="/register">Register</a> <a class="button" href="/login">Log in</a>`)
		}
		hw.Raw(`</section>`)
		return hw.Err()
	})
	return layouts.Base("Home", body)
}

// ErrorPage renders a full error page for the given status code.
func ErrorPage(code int, message string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := layouts.NewWriter(w)
		hw.Raw(`<section class="error"><h1>`)
		hw.Text(strconv.Itoa(code))
		hw.Raw(`</h1><p>`)
		hw.Text(message)
		hw.Raw(`</p><a href="/">Back to the start</a></section>`)
		return hw.Err()
	})
	return layouts.Base("Error", body)
}
