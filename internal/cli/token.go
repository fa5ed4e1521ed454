package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/randalmurphal/gitlab-artifact-cleanup/config"
)

// readToken asks for the access token on a terminal without echo, or reads
// the first line of a redirected stdin. An empty answer is config.ErrNoToken.
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	var token string

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd conversion is safe on all supported platforms
		raw, err := promptHidden(f, prompt)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		token = raw
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read token: %w", err)
		}
		token = line
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", config.ErrNoToken
	}
	return token, nil
}

func promptHidden(f *os.File, prompt io.Writer) (string, error) {
	fd := int(f.Fd()) //nolint:gosec // fd conversion is safe on all supported platforms

	_, _ = fmt.Fprint(prompt, "GitLab Login Token: ")
	raw, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(prompt)
	return string(raw), err
}
