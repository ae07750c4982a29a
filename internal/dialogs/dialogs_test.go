package dialogs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taylor-r-miller/SlowQuit/internal/autostart"
	"github.com/taylor-r-miller/SlowQuit/internal/logging"
	"github.com/taylor-r-miller/SlowQuit/internal/prefs"
	"github.com/taylor-r-miller/SlowQuit/internal/wizard"
)

type fakeChecker struct{ trusted atomic.Bool }

func (c *fakeChecker) Trusted() bool { return c.trusted.Load() }

type fakeLauncher struct {
	opened atomic.Int32
	err    error
}

func (l *fakeLauncher) OpenAccessibility(context.Context) error {
	l.opened.Add(1)
	return l.err
}

// scripted answers each Present with the next button; onPresent runs first.
type scripted struct {
	mu        sync.Mutex
	buttons   []string
	err       error
	messages  []Message
	onPresent func(n int)
}

func (s *scripted) Present(_ context.Context, m Message) (string, error) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	n := len(s.messages)
	hook := s.onPresent
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if len(s.buttons) == 0 {
		return ButtonCancel, nil
	}
	b := s.buttons[0]
	s.buttons = s.buttons[1:]
	return b, nil
}

func (s *scripted) presented() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

type fakeWizard struct {
	shows  atomic.Int32
	result bool
	err    error
}

func (w *fakeWizard) Show(_ context.Context, completion func(bool)) error {
	w.shows.Add(1)
	if w.err != nil {
		return w.err
	}
	go completion(w.result)
	return nil
}

type fakeAutoStart struct {
	installed []string
	err       error
}

func (a *fakeAutoStart) IsInstalled() (bool, error) {
	if errors.Is(a.err, autostart.ErrUnsupported) {
		return false, a.err
	}
	return len(a.installed) > 0, nil
}

func (a *fakeAutoStart) Uninstall() error {
	if a.err != nil {
		return a.err
	}
	a.installed = nil
	return nil
}

func (a *fakeAutoStart) Install(execPath string) error {
	if a.err != nil {
		return a.err
	}
	a.installed = append(a.installed, execPath)
	return nil
}

type nopView struct{}

func (nopView) Show(wizard.State)   {}
func (nopView) Update(wizard.State) {}
func (nopView) Close()              {}

type harness struct {
	d         *Dialogs
	presenter *scripted
	checker   *fakeChecker
	launcher  *fakeLauncher
	wizard    *fakeWizard
	auto      *fakeAutoStart
	store     *prefs.Store
}

func newHarness(t *testing.T, buttons ...string) *harness {
	h := &harness{
		presenter: &scripted{buttons: buttons},
		checker:   &fakeChecker{},
		launcher:  &fakeLauncher{},
		wizard:    &fakeWizard{},
		auto:      &fakeAutoStart{},
		store:     prefs.NewStore(filepath.Join(t.TempDir(), "preferences.yaml")),
	}
	h.d = New(Options{
		Presenter:  h.presenter,
		Checker:    h.checker,
		Launcher:   h.launcher,
		Wizard:     h.wizard,
		Prefs:      h.store,
		AutoStart:  h.auto,
		ExecPath:   "/Applications/SlowQuit.app/Contents/MacOS/SlowQuit",
		MaxRetries: 2,
		Logger:     logging.Discard(),
	})
	return h
}

// await collects completions and fails the test if one does not arrive.
type await struct {
	ch chan bool
}

func newAwait() *await { return &await{ch: make(chan bool, 16)} }

func (a *await) complete(granted bool) { a.ch <- granted }

func (a *await) next(t *testing.T) bool {
	t.Helper()
	select {
	case g := <-a.ch:
		return g
	case <-time.After(2 * time.Second):
		t.Fatal("completion not called")
		return false
	}
}

func (a *await) none(t *testing.T) {
	t.Helper()
	select {
	case g := <-a.ch:
		t.Fatalf("unexpected extra completion %v", g)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDialogCancel(t *testing.T) {
	h := newHarness(t, ButtonCancel)
	a := newAwait()

	h.d.ShowAccessibilityPermissionsDialog(context.Background(), a.complete)
	assert.False(t, a.next(t))
	a.none(t)

	msgs := h.presenter.presented()
	require.Len(t, msgs, 1)
	assert.Equal(t, Warning, msgs[0].Kind)
	assert.Equal(t, ButtonCancel, msgs[0].Cancel)
	assert.Contains(t, msgs[0].Buttons, ButtonOpenSettings)
	assert.Contains(t, msgs[0].Buttons, ButtonGranted)
}

func TestDialogOpenSettingsThenGranted(t *testing.T) {
	h := newHarness(t, ButtonOpenSettings, ButtonGranted)
	h.presenter.onPresent = func(n int) {
		if n == 2 {
			h.checker.trusted.Store(true)
		}
	}
	a := newAwait()

	h.d.ShowAccessibilityPermissionsDialog(context.Background(), a.complete)
	assert.True(t, a.next(t))
	assert.EqualValues(t, 1, h.launcher.opened.Load())

	msgs := h.presenter.presented()
	require.Len(t, msgs, 2)
	assert.Equal(t, afterOpenText, msgs[1].Text)
}

func TestDialogVerifiesAssertion(t *testing.T) {
	h := newHarness(t, ButtonGranted, ButtonGranted)
	a := newAwait()

	h.d.ShowAccessibilityPermissionsDialog(context.Background(), a.complete)
	assert.False(t, a.next(t))

	msgs := h.presenter.presented()
	require.Len(t, msgs, 2)
	assert.Equal(t, notDetectedText, msgs[1].Text)
}

func TestDialogRecoversAfterUnconfirmedAssertion(t *testing.T) {
	h := newHarness(t, ButtonGranted, ButtonGranted)
	h.presenter.onPresent = func(n int) {
		if n == 2 {
			h.checker.trusted.Store(true)
		}
	}
	a := newAwait()

	h.d.ShowAccessibilityPermissionsDialog(context.Background(), a.complete)
	assert.True(t, a.next(t))
}

func TestDialogPresenterError(t *testing.T) {
	h := newHarness(t)
	h.presenter.err = errors.New("no window")
	a := newAwait()

	h.d.ShowAccessibilityPermissionsDialog(context.Background(), a.complete)
	assert.False(t, a.next(t))
}

func TestDialogCancelledContext(t *testing.T) {
	h := newHarness(t, ButtonGranted)
	h.checker.trusted.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newAwait()

	h.d.ShowAccessibilityPermissionsDialog(ctx, a.complete)
	assert.False(t, a.next(t))
	assert.Empty(t, h.presenter.presented())
}

func TestWizardForwardsResult(t *testing.T) {
	for _, want := range []bool{true, false} {
		h := newHarness(t)
		h.wizard.result = want
		a := newAwait()

		h.d.ShowAccessibilityPermissionsWizard(context.Background(), a.complete)
		assert.Equal(t, want, a.next(t))
		a.none(t)
		assert.EqualValues(t, 1, h.wizard.shows.Load())
	}
}

func TestWizardShowErrorFallsBackToChecker(t *testing.T) {
	h := newHarness(t)
	h.wizard.err = errors.New("already open")
	h.checker.trusted.Store(true)
	a := newAwait()

	h.d.ShowAccessibilityPermissionsWizard(context.Background(), a.complete)
	assert.True(t, a.next(t))
}

func TestOverlappingRequestsShareOnePresentation(t *testing.T) {
	h := newHarness(t, ButtonCancel)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.presenter.onPresent = func(n int) {
		if n == 1 {
			close(entered)
			<-release
		}
	}
	first, second, third := newAwait(), newAwait(), newAwait()

	h.d.ShowAccessibilityPermissionsDialog(context.Background(), first.complete)
	<-entered
	h.d.ShowAccessibilityPermissionsDialog(context.Background(), second.complete)
	h.d.ShowAccessibilityPermissionsWizard(context.Background(), third.complete)
	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.False(t, first.next(t))
	assert.False(t, second.next(t))
	assert.False(t, third.next(t))
	first.none(t)
	second.none(t)
	third.none(t)

	assert.Len(t, h.presenter.presented(), 1)
	assert.Zero(t, h.wizard.shows.Load())
}

func TestNilCompletion(t *testing.T) {
	h := newHarness(t, ButtonCancel)
	assert.NotPanics(t, func() {
		h.d.ShowAccessibilityPermissionsDialog(context.Background(), nil)
	})
	require.Eventually(t, func() bool { return len(h.presenter.presented()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestOpenAccessibilityPreferences(t *testing.T) {
	h := newHarness(t)
	h.launcher.err = errors.New("no handler")

	assert.NotPanics(t, func() { h.d.OpenAccessibilityPreferences(context.Background()) })
	assert.EqualValues(t, 1, h.launcher.opened.Load())
}

func TestInformHotkeyRegistrationFailure(t *testing.T) {
	h := newHarness(t)

	h.d.InformHotkeyRegistrationFailure(context.Background(), errors.New("shortcut taken"))
	h.d.InformHotkeyRegistrationFailure(context.Background(), nil)

	msgs := h.presenter.presented()
	require.Len(t, msgs, 2)
	assert.Equal(t, Error, msgs[0].Kind)
	assert.Contains(t, msgs[0].Text, "Details: shortcut taken")
	assert.Equal(t, hotkeyFailureText, msgs[1].Text)
	assert.Equal(t, []string{ButtonOK}, msgs[1].Buttons)
}

func TestInformAccessibilityRequirement(t *testing.T) {
	h := newHarness(t)
	h.presenter.err = errors.New("no window")

	assert.NotPanics(t, func() { h.d.InformAccessibilityRequirement(context.Background()) })
	msgs := h.presenter.presented()
	require.Len(t, msgs, 1)
	assert.Equal(t, Info, msgs[0].Kind)
	assert.Equal(t, requirementText, msgs[0].Text)
}

func TestAskAboutAutoStartAccept(t *testing.T) {
	h := newHarness(t, ButtonStartAtLogin)

	require.NoError(t, h.d.AskAboutAutoStart(context.Background()))
	assert.Equal(t, []string{"/Applications/SlowQuit.app/Contents/MacOS/SlowQuit"}, h.auto.installed)

	p, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, prefs.Preferences{AutoStartAsked: true, AutoStart: true}, p)

	require.NoError(t, h.d.AskAboutAutoStart(context.Background()))
	assert.Len(t, h.presenter.presented(), 1)
}

func TestAskAboutAutoStartDecline(t *testing.T) {
	h := newHarness(t, ButtonNotNow)

	require.NoError(t, h.d.AskAboutAutoStart(context.Background()))
	assert.Empty(t, h.auto.installed)

	p, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, prefs.Preferences{AutoStartAsked: true}, p)
}

func TestAskAboutAutoStartUnsupported(t *testing.T) {
	h := newHarness(t, ButtonStartAtLogin)
	h.auto.err = autostart.ErrUnsupported

	require.NoError(t, h.d.AskAboutAutoStart(context.Background()))
	p, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, prefs.Preferences{AutoStartAsked: true}, p)
}

func TestAskAboutAutoStartInstallFailure(t *testing.T) {
	h := newHarness(t, ButtonStartAtLogin)
	h.auto.err = errors.New("read-only file system")

	assert.Error(t, h.d.AskAboutAutoStart(context.Background()))
	p, err := h.store.Load()
	require.NoError(t, err)
	assert.False(t, p.AutoStartAsked)
}

func TestAskAboutAutoStartPresenterError(t *testing.T) {
	h := newHarness(t)
	h.presenter.err = errors.New("no window")

	assert.Error(t, h.d.AskAboutAutoStart(context.Background()))
	p, err := h.store.Load()
	require.NoError(t, err)
	assert.False(t, p.AutoStartAsked)
}

func TestWizardJoinedByDialogRequest(t *testing.T) {
	h := newHarness(t)
	w := wizard.New(h.checker, h.launcher, nopView{}, logging.Discard())
	h.d.wizard = w
	first, second := newAwait(), newAwait()

	h.d.ShowAccessibilityPermissionsWizard(context.Background(), first.complete)
	require.Eventually(t, func() bool { return w.State().Open }, time.Second, 5*time.Millisecond)
	h.d.ShowAccessibilityPermissionsDialog(context.Background(), second.complete)

	h.checker.trusted.Store(true)
	w.Dismiss()
	w.Dismiss()

	assert.True(t, first.next(t))
	assert.True(t, second.next(t))
	first.none(t)
	second.none(t)
	assert.Empty(t, h.presenter.presented())
	assert.False(t, w.State().Open)
}

func TestSetAutoStart(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.d.SetAutoStart(true))
	enabled, err := h.d.AutoStartEnabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, h.d.SetAutoStart(false))
	enabled, err = h.d.AutoStartEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	p, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, prefs.Preferences{AutoStartAsked: true}, p)

	require.NoError(t, h.d.AskAboutAutoStart(context.Background()))
	assert.Empty(t, h.presenter.presented())
}

func TestSetAutoStartFailureKeepsPreferences(t *testing.T) {
	h := newHarness(t)
	h.auto.err = errors.New("read-only file system")

	assert.Error(t, h.d.SetAutoStart(false))
	p, err := h.store.Load()
	require.NoError(t, err)
	assert.False(t, p.AutoStartAsked)
}

func TestAutoStartEnabledUnsupported(t *testing.T) {
	h := newHarness(t)
	h.auto.err = autostart.ErrUnsupported

	enabled, err := h.d.AutoStartEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)
}
