// Package routes names the application's pages and the navigation callback
// used to move between them.
package routes

const (
	Login   = "/"
	Bills   = "/employee/bills"
	NewBill = "/employee/bill/new"
)

// Vertical layout icons.
const (
	IconWindow = "icon-window"
	IconMail   = "icon-mail"
)

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// ActiveIcon returns the layout icon highlighted on path, or "".
func ActiveIcon(path string) string {
	switch path {
	case Bills:
		return IconWindow
	case NewBill:
		return IconMail
	}
	return ""
}

// Recorder is a Navigator that remembers every path it was sent to.
type Recorder struct {
	Paths []string
}

func (r *Recorder) Navigate(path string) {
	r.Paths = append(r.Paths, path)
}

// Last returns the most recent path, or "".
func (r *Recorder) Last() string {
	if len(r.Paths) == 0 {
		return ""
	}
	return r.Paths[len(r.Paths)-1]
}
