package media

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"unicode"

	"github.com/a-h/templ"
)

// AvatarSize is the width and height of a generated avatar in pixels.
const AvatarSize = 128

var avatarColors = []string{
	"#f87171", "#fb923c", "#fbbf24", "#a3e635", "#34d399",
	"#22d3ee", "#60a5fa", "#a78bfa", "#f472b6", "#94a3b8",
}

// Initials returns the uppercased first letters of the first and last words
// of name, or "?" when name has no letters.
func Initials(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "?"
	}
	initials := []rune{firstRune(words[0])}
	if len(words) > 1 {
		initials = append(initials, firstRune(words[len(words)-1]))
	}
	return strings.ToUpper(string(initials))
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return '?'
}

// Avatar renders an SVG circle with the initials of name. The background
// color is derived from name, so the same name always gets the same color.
func Avatar(name string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := fnv.New32a()
		h.Write([]byte(name))
		color := avatarColors[h.Sum32()%uint32(len(avatarColors))]

		_, err := fmt.Fprintf(w,
			`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]d" height="%[1]d" viewBox="0 0 %[1]d %[1]d">`+
				`<circle cx="%[2]d" cy="%[2]d" r="%[2]d" fill="%[3]s"/>`+
				`<text x="50%%" y="50%%" dy=".35em" text-anchor="middle" font-family="sans-serif" font-size="%[4]d" fill="#ffffff">%[5]s</text>`+
				`</svg>`,
			AvatarSize, AvatarSize/2, color, AvatarSize*2/5, templ.EscapeString(Initials(name)))
		return err
	})
}
