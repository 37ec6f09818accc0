// Package desk wires the client together: the signed-in session, the
// complaint store, the inbox, the chat manager and the optional alerts.
// Front ends (the CLI, tests) talk to a Desk only.
package desk

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"complaintdesk/backend/internal/api"
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/auth"
	"complaintdesk/backend/internal/chathub"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/inbox"
	"complaintdesk/backend/internal/localization"
	"complaintdesk/backend/internal/logging"
	"complaintdesk/backend/internal/metrics"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/prefs"
	"complaintdesk/backend/internal/telegram"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dashboard is what Refresh loads.
type Dashboard struct {
	Complaints    []models.Complaint
	Stats         models.ComplaintStats
	Notifications []models.Notification
}

// Desk is the client facade.
type Desk struct {
	API       *api.Client
	Auth      *auth.Session
	Store     *complaint.Store
	Inbox     *inbox.Inbox
	Chat      *chathub.Manager
	Prefs     *prefs.Store
	Notifier  *telegram.Notifier
	Metrics   *metrics.Metrics
	Localizer *localization.Localizer

	log     *zap.Logger
	release func() error
}

// Option adjusts how New builds a Desk.
type Option func(*options)

type options struct {
	dialer   chathub.Dialer
	notifier *telegram.Notifier
}

// WithDialer replaces the chat transport chosen by the configuration.
func WithDialer(d chathub.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithNotifier replaces the Telegram notifier built from the configuration.
func WithNotifier(n *telegram.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// New builds a Desk from cfg.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) (*Desk, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log = logging.OrNop(log)
	m := metrics.New()
	loc := localization.Default()

	client, err := api.NewClient(cfg.APIURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		api.WithLogger(log.Named("api")),
	)
	if err != nil {
		return nil, err
	}

	session := auth.NewSession(client)
	if cfg.Token != "" {
		if err := session.Restore(cfg.Token); err != nil {
			log.Warn("ignoring saved token", zap.Error(err))
		}
	}

	preferences, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		return nil, err
	}

	release := func() error { return nil }
	dialer := o.dialer
	if dialer == nil {
		dialer, release, err = chathub.NewDialer(cfg, session.Token, log.Named("chat"))
		if err != nil {
			return nil, err
		}
	}

	notifier := o.notifier
	if notifier == nil && cfg.TelegramEnabled() {
		notifier, err = telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, loc, log.Named("telegram"))
		if err != nil {
			log.Warn("telegram alerts disabled", zap.Error(err))
		}
	}

	store := complaint.NewStore(client,
		complaint.WithLogger(log.Named("store")),
		complaint.WithMetrics(m),
	)
	if notifier != nil {
		store.AddStatusListener(notifier)
	}

	d := &Desk{
		API:       client,
		Auth:      session,
		Store:     store,
		Inbox:     inbox.New(client),
		Chat:      chathub.NewManager(dialer, log.Named("chat"), chathub.WithMetrics(m), chathub.WithJoinTimeout(cfg.ChatJoinTimeout)),
		Prefs:     preferences,
		Notifier:  notifier,
		Metrics:   m,
		Localizer: loc,
		log:       log,
		release:   release,
	}
	return d, nil
}

// Login signs in.
func (d *Desk) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	user, err := d.Auth.Login(ctx, d.API, creds)
	if err != nil {
		return nil, err
	}
	d.log.Info("signed in", zap.String("user_id", user.ID))
	return user, nil
}

// Logout signs out and leaves any open chat.
func (d *Desk) Logout() error {
	err := d.Chat.Close()
	d.Auth.Clear()
	return err
}

// Refresh loads complaints, stats and notifications concurrently. A failing
// part does not cancel the others. The dashboard is always returned with
// what loaded, or the cached copy, and the error joins every failure.
func (d *Desk) Refresh(ctx context.Context) (*Dashboard, error) {
	userID, err := d.Auth.UserID()
	if err != nil {
		return nil, err
	}

	var (
		dash     Dashboard
		g        errgroup.Group
		complErr error
		statsErr error
		inboxErr error
	)
	g.Go(func() error {
		dash.Complaints, complErr = d.Store.Load(ctx, userID)
		return complErr
	})
	g.Go(func() error {
		var stats *models.ComplaintStats
		if stats, statsErr = d.API.ComplaintStats(ctx, userID); statsErr == nil {
			dash.Stats = *stats
		}
		return statsErr
	})
	g.Go(func() error {
		dash.Notifications, inboxErr = d.Inbox.Load(ctx, userID)
		return inboxErr
	})
	_ = g.Wait()

	if complErr != nil {
		dash.Complaints = d.Store.List()
	}
	if inboxErr != nil {
		dash.Notifications = d.Inbox.List()
	}
	if statsErr != nil {
		d.log.Warn("failed to load complaint stats", zap.Error(statsErr))
	}
	return &dash, errors.Join(complErr, statsErr, inboxErr)
}

// Submit creates a complaint for the signed-in user.
func (d *Desk) Submit(ctx context.Context, draft models.ComplaintDraft) (*models.Complaint, error) {
	userID, err := d.Auth.UserID()
	if err != nil {
		return nil, err
	}
	draft.UserID = userID

	created, err := d.Store.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	if err := d.Notifier.ComplaintCreated(ctx, *created); err != nil {
		d.log.Warn("failed to post complaint alert", zap.Error(err))
	}
	return created, nil
}

// Edit updates a cached complaint.
func (d *Desk) Edit(ctx context.Context, id models.ComplaintID, patch models.ComplaintPatch) (*models.Complaint, error) {
	return d.Store.Update(ctx, id, patch)
}

// Delete removes a cached complaint. confirmed records the user's consent.
// The complaint's open chat is left only once the deletion succeeded.
func (d *Desk) Delete(ctx context.Context, id models.ComplaintID, confirmed bool) error {
	if err := d.Store.Remove(ctx, id, confirmed); err != nil {
		return err
	}
	if cur := d.Chat.Current(); cur != nil && cur.ComplaintID() == id {
		if err := d.Chat.Close(); err != nil {
			d.log.Warn("failed to close chat of deleted complaint", zap.Error(err))
		}
	}
	return nil
}

// OpenChat joins the chat of a complaint the store knows about.
func (d *Desk) OpenChat(ctx context.Context, id models.ComplaintID) (*chathub.Session, error) {
	if _, ok := d.Store.Get(id); !ok {
		return nil, apperr.NotFound("desk.OpenChat", string(id))
	}
	return d.Chat.Open(ctx, id)
}

// ChangePassword changes the signed-in user's password.
func (d *Desk) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) error {
	userID, err := d.Auth.UserID()
	if err != nil {
		return err
	}
	return d.API.ChangePassword(ctx, models.PasswordChange{
		UserID:          userID,
		OldPassword:     oldPassword,
		NewPassword:     newPassword,
		ConfirmPassword: confirm,
	})
}

// UpdateProfile edits the signed-in user's profile.
func (d *Desk) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.User, error) {
	userID, err := d.Auth.UserID()
	if err != nil {
		return nil, err
	}
	user, err := d.API.UpdateProfile(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	d.Auth.UpdateUser(*user)
	return user, nil
}

// Describe renders err for the user in lang.
func (d *Desk) Describe(lang string, err error) string {
	return d.Localizer.Error(lang, err)
}

// Close leaves any open chat and releases the transport.
func (d *Desk) Close() error {
	var errs []error
	if err := d.Chat.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close chat: %w", err))
	}
	if err := d.release(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release chat transport: %w", err))
	}
	return errors.Join(errs...)
}
