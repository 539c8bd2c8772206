package bundle

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// WriteText prints one line per check, then a summary line. When verr is a
// *BuildError the captured build output is printed first.
func (r *Report) WriteText(w io.Writer, verr error) {
	var be *BuildError
	if errors.As(verr, &be) {
		fmt.Fprintf(w, "BUILD FAILED: %s\n", be.headline())
		if be.Result != nil {
			writeStream(w, "stdout", be.Result.Stdout)
			writeStream(w, "stderr", be.Result.Stderr)
		}
	}

	for _, c := range r.Checks {
		if c.Detail == "" {
			fmt.Fprintf(w, "%-4s %s\n", c.Status(), c.Name)
			continue
		}
		fmt.Fprintf(w, "%-4s %s: %s\n", c.Status(), c.Name, c.Detail)
	}

	switch {
	case r.Passed():
		fmt.Fprintf(w, "OK %s\n", r.Artifact)
	case be != nil:
		fmt.Fprintf(w, "FAILED %s: build failed\n", r.Artifact)
	default:
		names := make([]string, 0, len(r.Checks))
		for _, n := range r.Failed() {
			names = append(names, string(n))
		}
		fmt.Fprintf(w, "FAILED %s: %s\n", r.Artifact, strings.Join(names, ", "))
	}
}

func writeStream(w io.Writer, name, s string) {
	fmt.Fprintf(w, "--- %s ---\n", name)
	if s == "" {
		return
	}
	fmt.Fprint(w, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(w)
	}
}
