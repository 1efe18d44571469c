// Package views renders the site's HTML pages as templ components.
package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const stylesheet = `
body { font-family: sans-serif; margin: 2em; }
table.calendar { border-collapse: collapse; width: 100%; table-layout: fixed; }
table.calendar th, table.calendar td { border: 1px solid #ccc; vertical-align: top; padding: 4px; height: 6em; }
.course { display: block; margin: 2px 0; padding: 2px 4px; border-radius: 3px; text-decoration: none; color: #222; }
.course.morning { background: #fff3c4; }
.course.afternoon { background: #cfe8ff; }
.course.full { opacity: 0.5; }
.error { color: #b00020; }
nav a { margin-right: 1em; }
`

// htmlWriter writes markup and remembers the first write error so
// components can render without checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

// raw writes trusted markup.
func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

// rawf formats trusted markup. String and Stringer arguments are escaped;
// other values are formatted as-is.
func (hw *htmlWriter) rawf(format string, args ...any) {
	escaped := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			escaped[i] = templ.EscapeString(v)
		case fmt.Stringer:
			escaped[i] = templ.EscapeString(v.String())
		default:
			escaped[i] = a
		}
	}
	hw.raw(fmt.Sprintf(format, escaped...))
}

// component adapts a render function into a templ.Component.
func component(render func(ctx context.Context, hw *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		render(ctx, hw)
		return hw.err
	})
}

// page wraps body in the shared document layout.
func page(title string, admin bool, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html><head><meta charset="utf-8">`)
		hw.rawf(`<title>%s</title>`, title)
		hw.raw(`<style>` + stylesheet + `</style></head><body><nav><a href="/">Calendar</a>`)
		if admin {
			hw.raw(`<a href="/admin">Admin</a><a href="/admin/add">Add course</a><a href="/logout">Log out</a>`)
		} else {
			hw.raw(`<a href="/login">Admin login</a>`)
		}
		hw.raw(`</nav>`)
		if hw.err != nil {
			return hw.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		hw.raw(`</body></html>`)
		return hw.err
	})
}

// formError renders a validation message when there is one.
func formError(hw *htmlWriter, msg string) {
	if msg != "" {
		hw.rawf(`<p class="error">%s</p>`, msg)
	}
}
