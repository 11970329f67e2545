package pub

import (
	"captchaguard/internal/hooks"
	"captchaguard/internal/ports"
	"captchaguard/internal/types"
	"context"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// SettingsChanged is the message published after every stored settings change.
// It never carries credentials.
type SettingsChanged struct {
	SiteID       string   `json:"site_id"`
	Event        string   `json:"event"`
	Configured   bool     `json:"configured"`
	SiteKey      string   `json:"site_key,omitempty"`
	EUIsolation  bool     `json:"eu_isolation"`
	EnabledFlags []string `json:"enabled_flags"`
	Timestamp    int64    `json:"ts"`
}

// Notifier forwards settings events to a topic. It implements hooks.Listener.
type Notifier struct {
	siteID   string
	topicArn string
	pub      ports.Publisher
	now      func() time.Time
}

func NewNotifier(siteID, topicArn string, pub ports.Publisher) *Notifier {
	return &Notifier{siteID: siteID, topicArn: topicArn, pub: pub, now: time.Now}
}

func (n *Notifier) Message(ev hooks.Event, s types.Settings) SettingsChanged {
	return SettingsChanged{
		SiteID:       n.siteID,
		Event:        string(ev),
		Configured:   s.Configured(),
		SiteKey:      s.SiteKey,
		EUIsolation:  s.EUIsolation,
		EnabledFlags: s.EnabledFlags(),
		Timestamp:    n.now().Unix(),
	}
}

func (n *Notifier) Handle(ctx context.Context, ev hooks.Event, s types.Settings) error {
	if ev == hooks.SettingsLoaded {
		return nil
	}
	b, err := json.Marshal(n.Message(ev, s))
	if err != nil {
		return err
	}
	if err := n.pub.PublishRaw(ctx, n.topicArn, b); err != nil {
		log.WithError(err).WithField("topic", n.topicArn).Warn("Failed to publish settings change")
		return err
	}
	return nil
}
