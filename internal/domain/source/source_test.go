package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Kind
		wantOK bool
	}{
		{name: "local upper", input: "LOCAL", want: KindLocal, wantOK: true},
		{name: "remote lower", input: "remote", want: KindRemote, wantOK: true},
		{name: "padded", input: "  Local ", want: KindLocal, wantOK: true},
		{name: "unknown", input: "youtube", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseKind(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSource_SameAs(t *testing.T) {
	a := Source{Kind: KindLocal, DisplayName: "Intro", Ref: "/media/intro.mp4"}

	assert.True(t, a.SameAs(Source{Kind: KindLocal, DisplayName: "Other name", Ref: "/media/intro.mp4"}))
	assert.False(t, a.SameAs(Source{Kind: KindRemote, Ref: "/media/intro.mp4"}))
	assert.False(t, a.SameAs(Source{Kind: KindLocal, Ref: "/media/outro.mp4"}))
}

func TestSource_IsZero(t *testing.T) {
	assert.True(t, Source{}.IsZero())
	assert.True(t, Source{Kind: KindRemote, DisplayName: "x"}.IsZero())
	assert.False(t, Source{Kind: KindRemote, Ref: "jt7AF2RCMhg"}.IsZero())
}
