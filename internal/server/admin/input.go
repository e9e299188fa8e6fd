package admin

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptPassword reads a new password twice without echo.
func promptPassword(w io.Writer) (string, string, error) {
	first, err := readHidden(w, "New password: ")
	if err != nil {
		return "", "", err
	}
	second, err := readHidden(w, "Repeat password: ")
	if err != nil {
		return "", "", err
	}
	return first, second, nil
}

func readHidden(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
