package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Signature hashes the audible-structure equivalence class of a config:
// topology mode, node identities/types/enabled flags/lanes, connection
// endpoints, chain order, and the auto-connect flag.
//
// Per-node parameter values and connection gains are deliberately excluded:
// continuous sweeps must not trigger a structural crossfade window. Gain
// edits are detected separately via GainSignature and blended with the
// shorter gain fade.
func Signature(cfg Config) string {
	var b strings.Builder

	b.WriteString(string(cfg.Mode))
	b.WriteByte('\n')

	for _, n := range cfg.Nodes {
		b.WriteString(n.ID)
		b.WriteByte('|')
		b.WriteString(n.Type)
		b.WriteByte('|')
		b.WriteString(strconv.FormatBool(n.Enabled))
		b.WriteByte('|')
		b.WriteString(string(n.Lane))
		b.WriteByte('\n')
	}

	for _, c := range cfg.Connections {
		b.WriteString(c.From)
		b.WriteByte('>')
		b.WriteString(c.To)
		b.WriteByte('\n')
	}

	for _, id := range cfg.Chain {
		b.WriteString(id)
		b.WriteByte(',')
	}

	b.WriteByte('\n')
	b.WriteString(strconv.FormatBool(cfg.AutoConnectEnd))

	return hashString(b.String())
}

// GainSignature hashes the connection gains of a config. A changed gain
// signature under an unchanged structural signature drives the short
// gain-only crossfade.
func GainSignature(cfg Config) string {
	var b strings.Builder

	for _, c := range cfg.Connections {
		b.WriteString(c.From)
		b.WriteByte('>')
		b.WriteString(c.To)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(c.Gain, 'g', -1, 64))
		b.WriteByte('\n')
	}

	return hashString(b.String())
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
