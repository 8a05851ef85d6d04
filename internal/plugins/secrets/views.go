package secrets

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/secrets/internal/templates/layouts"
)

// BoardPage renders every secret, oldest first.
func BoardPage(list []Secret) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := layouts.NewWriter(w)
		hw.Raw(`<section class="board"><h1>You've discovered my secret!</h1>`)

		if len(list) == 0 {
			hw.Raw(`<p class="empty">No secrets yet.</p>`)
		} else {
			hw.Raw(`<ul class="secrets">`)
			for _, s := range list {
				hw.Raw(`<li>`)
				hw.Text(s.Text)
				hw.Raw(`</li>`)
			}
			hw.Raw(`</ul>`)
		}

		if layouts.IsAuthenticated(ctx) {
			hw.Raw(`<a class="button" href="/submit">Submit a secret</a>`)
		} else {
			hw.Raw(`<p><a href="/login">Log in</a> to share yours.</p>`)
		}
		hw.Raw(`</section>`)
		return hw.Err()
	})
	return layouts.Base("Secrets", body)
}

// SubmitPage renders the secret form. current pre-fills the textarea.
func SubmitPage(notification, current string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := layouts.NewWriter(w)
		hw.Raw(`<section class="submit"><h1>Secrets</h1>`)
		hw.Raw(`<p>Don't keep your secrets, share them anonymously!</p>`)
		hw.Notification(notification)
		hw.Raw(`<form method="post" action="/submit">`)
		hw.CSRFField(ctx)
		hw.Raw(`<label for="secret">Your secret</label>`)
		hw.Raw(`<textarea id="secret" name="secret" required maxlength="`)
		hw.Raw(strconv.Itoa(MaxSecretLength))
		hw.Raw(`" placeholder="What's your secret?">`)
		hw.Text(current)
		hw.Raw(`</textarea><button type="submit">Submit</button></form></section>`)
		return hw.Err()
	})
	return layouts.Base("Submit a secret", body)
}
