// Package offerwall builds signed links to the survey partner's wall.
package offerwall

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/surveycash/surveycash-backend/pkg/config"
)

var errAppIDRequired = errors.New("offerwall app id is required")

// Viewer identifies the user the wall is rendered for. ExtUserID is echoed
// back by the partner in reward callbacks.
type Viewer struct {
	ExtUserID string
	Username  string
	Email     string
}

// Builder renders wall URLs for a fixed partner app.
type Builder struct {
	baseURL    string
	appID      string
	secureHash string
}

func NewBuilder(cfg config.OfferwallConfig) (*Builder, error) {
	appID := strings.TrimSpace(cfg.AppID)
	if appID == "" {
		return nil, errAppIDRequired
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if _, err := url.Parse(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid offerwall base url %q", cfg.BaseURL)
	}
	return &Builder{baseURL: base, appID: appID, secureHash: strings.TrimSpace(cfg.SecureHash)}, nil
}

// URL returns the iframe URL for viewer. secure_hash is only added when a
// secret is configured.
func (b *Builder) URL(viewer Viewer) (string, error) {
	ext := strings.TrimSpace(viewer.ExtUserID)
	if ext == "" {
		ext = strings.TrimSpace(viewer.Email)
	}
	if ext == "" {
		return "", errors.New("viewer has no user reference")
	}

	params := url.Values{}
	params.Set("app_id", b.appID)
	params.Set("ext_user_id", ext)
	if b.secureHash != "" {
		params.Set("secure_hash", Signature(ext, b.secureHash))
	}
	if name := strings.TrimSpace(viewer.Username); name != "" {
		params.Set("username", name)
	}
	if email := strings.TrimSpace(viewer.Email); email != "" {
		params.Set("email", email)
	}
	return b.baseURL + "?" + params.Encode(), nil
}

// Signature is the partner's md5("<extUserId>-<secret>") hex digest.
func Signature(extUserID, secret string) string {
	sum := md5.Sum([]byte(extUserID + "-" + secret))
	return hex.EncodeToString(sum[:])
}
