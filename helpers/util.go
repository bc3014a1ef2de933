package helpers

import (
	"errors"
	"net/url"
)

// SiteRoot returns the scheme and host of target with a trailing slash
func SiteRoot(target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("url has no scheme or host")
	}
	return parsed.Scheme + "://" + parsed.Host + "/", nil
}
