package definition

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/cookbridge/internal/param"
)

// Definition is one resolved asset.
type Definition struct {
	Name        string
	Description string
	Library     string
	// File is the manifest the definition was read from.
	File       string
	Schema     *param.Schema
	Marshaller *param.Marshaller
}

// fingerprint summarizes everything that affects a cook, so a reload can tell
// which definitions changed.
func (d *Definition) fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "library=%s;", d.Library)
	for _, s := range d.Schema.Specs() {
		fmt.Fprintf(&b, "%s:%s:%d:%v:%v:%s", s.Name, s.Kind, s.Size, fmtBound(s.Min), fmtBound(s.Max), strings.Join(s.Choices, ","))
		if !s.Default.IsNull() {
			fmt.Fprintf(&b, ":%s", s.Default.GoString())
		}
		b.WriteByte(';')
	}
	return b.String()
}

func fmtBound(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprint(*f)
}
