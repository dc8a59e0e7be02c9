package output

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newTestRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{input: "", want: ModeAuto},
		{input: "auto", want: ModeAuto},
		{input: "TEXT", want: ModeText},
		{input: " json ", want: ModeJSON},
		{input: "yaml", want: ModeYAML},
		{input: "markdown", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "auto, text, json, yaml")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{name: "auto on terminal", mode: ModeAuto, isTTY: true, want: ModeText},
		{name: "auto when piped", mode: ModeAuto, isTTY: false, want: ModeJSON},
		{name: "empty is auto", mode: "", isTTY: false, want: ModeJSON},
		{name: "explicit text when piped", mode: ModeText, isTTY: false, want: ModeText},
		{name: "explicit yaml on terminal", mode: ModeYAML, isTTY: true, want: ModeYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
			assert.Equal(t, tt.isTTY, r.IsTTY())
		})
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestRenderer_Encode(t *testing.T) {
	type doc struct {
		Name    string   `json:"name" yaml:"name"`
		Batches []string `json:"batches" yaml:"batches"`
	}
	v := doc{Name: "a.sql", Batches: []string{"SELECT 1", "SELECT 2"}}

	tests := []struct {
		mode    Mode
		encoded bool
		want    string
	}{
		{
			mode:    ModeJSON,
			encoded: true,
			want:    "{\n  \"name\": \"a.sql\",\n  \"batches\": [\n    \"SELECT 1\",\n    \"SELECT 2\"\n  ]\n}\n",
		},
		{
			mode:    ModeYAML,
			encoded: true,
			want:    "name: a.sql\nbatches:\n  - SELECT 1\n  - SELECT 2\n",
		},
		{
			mode: ModeText,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r, out, _ := newTestRenderer(tt.mode, false)
			encoded, err := r.Encode(v)
			require.NoError(t, err)
			assert.Equal(t, tt.encoded, encoded)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRenderer_TextHelpers(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeText, false)

	r.Header(1, "Batches")
	r.StatusLine("deploy.sql", "success", "(3 batches)")
	r.StatusLine("broken.sql", "failed", "")
	r.Success("done")
	r.Warning("history disabled")

	assert.Equal(t, "Batches\n  ✓ deploy.sql (3 batches)\n  ✗ broken.sql\ndone\n", out.String())
	assert.Equal(t, "Warning: history disabled\n", errOut.String())
	assert.False(t, ansiPattern.MatchString(out.String()))
}

func TestRenderer_Table(t *testing.T) {
	r, out, _ := newTestRenderer(ModeText, false)

	r.Table([]string{"File", "Batches"}, [][]any{
		{"a.sql", 2},
		{"b.sql", 10},
	})

	got := out.String()
	assert.Contains(t, got, "FILE")
	assert.Contains(t, got, "BATCHES")
	assert.Contains(t, got, "a.sql")
	assert.Contains(t, got, "10")
	assert.False(t, ansiPattern.MatchString(got))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Success", Title("success"))
	assert.Equal(t, "Failed", Title("failed"))
}

func TestStyles_StatusIcon(t *testing.T) {
	s := PlainStyles()
	assert.Equal(t, "✓", s.StatusIcon("success"))
	assert.Equal(t, "✗", s.StatusIcon("failed"))
	assert.Equal(t, "…", s.StatusIcon("running"))
}
