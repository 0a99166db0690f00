package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sifan077/linkgate/internal/app/model"
	"github.com/sifan077/linkgate/internal/app/repository"
	"github.com/sifan077/linkgate/pkg/useragent"
	"go.uber.org/zap"
)

// maxRefererLength matches the clicks.referer column size.
const maxRefererLength = 500

// ClickDispatcher hands click events to background accounting. Dispatch must
// return quickly and never block on storage.
type ClickDispatcher interface {
	Dispatch(event model.ClickEvent) error
}

// ClientParser extracts device details from a User-Agent header.
type ClientParser interface {
	Parse(userAgent string) useragent.DeviceInfo
}

// ClickRecorder turns a click event into a stored click and a counter bump.
type ClickRecorder struct {
	store  repository.LinkStore
	salt   []byte
	parser ClientParser
	logger *zap.Logger
}

// NewClickRecorder returns a recorder that anonymises client IPs with salt.
// parser may be nil, in which case clicks carry no device details.
func NewClickRecorder(store repository.LinkStore, salt string, parser ClientParser, logger *zap.Logger) *ClickRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickRecorder{
		store:  store,
		salt:   []byte(salt),
		parser: parser,
		logger: logger,
	}
}

// Record stores one click for event.LinkID. The click row and the counter
// increment commit together or not at all. Replaying an event that was
// already stored is a no-op.
func (r *ClickRecorder) Record(ctx context.Context, event model.ClickEvent) error {
	click := r.buildClick(event)
	err := r.store.InsertClickAndIncrement(ctx, event.LinkID, click)
	if errors.Is(err, repository.ErrClickExists) {
		r.logger.Debug("click already recorded", zap.String("id", click.ID), zap.String("slug", event.Slug))
		return nil
	}
	if err != nil {
		return fmt.Errorf("record click for %s: %w", event.Slug, err)
	}
	return nil
}

func (r *ClickRecorder) buildClick(event model.ClickEvent) *model.Click {
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	click := &model.Click{
		ID:        id,
		LinkID:    event.LinkID,
		At:        at.UTC(),
		IPHash:    r.hashIP(event.IP),
		UserAgent: optional(event.UserAgent),
		Referer:   optional(truncate(event.Referer, maxRefererLength)),
	}

	if r.parser != nil && event.UserAgent != "" {
		info := r.parser.Parse(event.UserAgent)
		click.Browser = info.Browser
		click.OS = info.OS
		click.Device = info.DeviceType
	}
	return click
}

func (r *ClickRecorder) hashIP(ip string) *string {
	if ip == "" {
		return nil
	}
	mac := hmac.New(sha256.New, r.salt)
	mac.Write([]byte(ip))
	sum := hex.EncodeToString(mac.Sum(nil))
	return &sum
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
