// Package secrets is the anonymous secrets board: signed-in users post one
// free-text secret each, and everyone can read every secret without
// learning who wrote it.
package secrets

// MaxSecretLength is the longest secret accepted, in characters, after
// sanitizing.
const MaxSecretLength = 1000

// Secret is one entry on the board. It carries no reference to its author.
type Secret struct {
	Text string
}

// SubmitRequest holds the data submitted by the secret form.
type SubmitRequest struct {
	Secret string `form:"secret"`
}
