package config

import (
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Path is a file path. A leading ~ or ~user is expanded to that home
// directory.
type Path string

func (p *Path) UnmarshalText(b []byte) error {
	*p = ToPath(string(b))
	return nil
}

func (p Path) String() string {
	return string(p)
}

func ToPath(path string) Path {
	return Path(expandHome(path))
}

// expandHome returns path unchanged when the home directory cannot be
// resolved.
func expandHome(path string) string {
	first, rest, _ := strings.Cut(filepath.ToSlash(path), "/")
	username, ok := strings.CutPrefix(first, "~")
	if !ok {
		return path
	}

	var home string
	if username == "" {
		dir, err := homedir.Dir()
		if err != nil {
			return path
		}
		home = dir
	} else {
		u, err := user.Lookup(username)
		if err != nil || u.HomeDir == "" {
			return path
		}
		home = u.HomeDir
	}
	return filepath.Join(home, filepath.FromSlash(rest))
}
