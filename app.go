package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.design/x/hotkey/mainthread"

	"github.com/taylor-r-miller/SlowQuit/internal/autostart"
	"github.com/taylor-r-miller/SlowQuit/internal/config"
	"github.com/taylor-r-miller/SlowQuit/internal/dialogs"
	"github.com/taylor-r-miller/SlowQuit/internal/hotkey"
	"github.com/taylor-r-miller/SlowQuit/internal/osascript"
	"github.com/taylor-r-miller/SlowQuit/internal/permissions"
	"github.com/taylor-r-miller/SlowQuit/internal/prefpane"
	"github.com/taylor-r-miller/SlowQuit/internal/prefs"
	"github.com/taylor-r-miller/SlowQuit/internal/wizard"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// App struct
type App struct {
	ctx      context.Context
	cfg      *config.Config
	logger   *slog.Logger
	headless bool

	checker   permissions.Checker
	launcher  prefpane.Launcher
	wizard    *wizard.Wizard
	dialogs   *dialogs.Dialogs
	store     *prefs.Store
	register  func(context.Context, hotkey.Shortcut) (hotkey.Binding, error)
	shortcut  hotkey.Shortcut

	// mainThread runs the hotkey loop; mainthread.Init outside tests.
	mainThread func(func())
	hotkeyReq  chan struct{}

	mu            sync.Mutex
	runCtx        context.Context
	cancel        context.CancelFunc
	binding       hotkey.Binding
	hotkeyStarted bool
	loopStarted   bool
}

// NewApp wires the components. In headless mode alerts go through osascript
// and the simple dialog replaces the wizard, which needs the app window.
func NewApp(cfg *config.Config, logger *slog.Logger, headless bool) (*App, error) {
	shortcut, err := hotkey.Parse(cfg.Hotkey.Shortcut)
	if err != nil {
		return nil, err
	}

	dir, err := config.SupportDir()
	if err != nil {
		return nil, err
	}
	agent, err := autostart.NewLaunchAgent(cfg.AutoStart.Label)
	if err != nil {
		return nil, err
	}
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		headless:  headless,
		checker:   permissions.System(),
		launcher:  prefpane.NewSystemLauncher(logger),
		store:     prefs.NewStore(prefs.DefaultPath(dir)),
		register:  hotkey.NewRegistrar(cfg.Hotkey.Attempts, cfg.Hotkey.RetryDelay, logger).Register,
		shortcut:  shortcut,

		mainThread: mainthread.Init,
		hotkeyReq:  make(chan struct{}, 1),
	}

	var presenter dialogs.Presenter = dialogs.WailsPresenter{}
	if headless {
		presenter = dialogs.NewScriptPresenter(osascript.NewRunner())
	}
	a.wizard = wizard.New(a.checker, a.launcher, &wizardView{app: a}, logger)
	a.dialogs = dialogs.New(dialogs.Options{
		Presenter:  presenter,
		Checker:    a.checker,
		Launcher:   a.launcher,
		Wizard:     a.wizard,
		Prefs:      a.store,
		AutoStart:  agent,
		ExecPath:   execPath,
		MaxRetries: cfg.Dialog.MaxRetries,
		Logger:     logger,
	})
	return a, nil
}

// logf logs a formatted message and surfaces errors to the user, the way the
// menu bar app reports problems it cannot recover from.
func (a *App) logf(level slog.Level, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	a.logger.Log(context.Background(), level, message)

	if level >= slog.LevelError && a.ctx != nil && !a.headless {
		go func() {
			runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
				Type:    runtime.ErrorDialog,
				Title:   "SlowQuit Error",
				Message: message,
			})
		}()
	}
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.runCtx = runCtx
	a.cancel = cancel
	a.mu.Unlock()

	go a.run(runCtx, func() { a.startHotkey(runCtx) }, nil)
}

// run asks about auto start, then makes sure Accessibility is granted before
// handing over to register. denied, if set, runs after the user was told the
// permission is still missing.
func (a *App) run(ctx context.Context, register func(), denied func()) {
	if err := a.dialogs.AskAboutAutoStart(ctx); err != nil {
		a.logf(slog.LevelWarn, "auto start: %v", err)
	}

	if a.checker.Trusted() {
		a.logger.Info("accessibility permission granted")
		register()
		return
	}

	a.logger.Warn("accessibility permission not granted", "flow", a.flow())
	a.requestPermission(ctx, func(granted bool) {
		if !granted {
			a.dialogs.InformAccessibilityRequirement(ctx)
			if denied != nil {
				denied()
			}
			return
		}
		register()
	})
}

func (a *App) flow() string {
	if a.headless {
		return config.FlowDialog
	}
	return a.cfg.PermissionFlow
}

func (a *App) requestPermission(ctx context.Context, completion dialogs.Completion) {
	if a.flow() == config.FlowDialog {
		a.dialogs.ShowAccessibilityPermissionsDialog(ctx, completion)
		return
	}
	a.dialogs.ShowAccessibilityPermissionsWizard(ctx, completion)
}

// startHotkey asks the hotkey loop to register the shortcut unless it is
// registered or a registration is under way. The loop starts on first use.
func (a *App) startHotkey(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hotkeyStarted {
		return
	}
	a.hotkeyStarted = true
	if !a.loopStarted {
		a.loopStarted = true
		go a.mainThread(func() { a.hotkeyLoop(ctx) })
	}
	select {
	case a.hotkeyReq <- struct{}{}:
	default:
	}
}

// hotkeyLoop owns the main thread until ctx is done. mainthread.Init exits
// the process when its function returns, so a failed registration goes back
// to waiting for the next request instead of returning.
func (a *App) hotkeyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.hotkeyReq:
			if err := a.setupHotkey(ctx); err != nil {
				a.logger.Warn("hotkey not registered, waiting for another request", "error", err)
			}
		}
	}
}

// setupHotkey registers the shortcut and blocks forwarding keydowns until
// ctx is done.
func (a *App) setupHotkey(ctx context.Context) error {
	b, err := a.register(ctx, a.shortcut)
	if err != nil {
		a.mu.Lock()
		a.hotkeyStarted = false
		a.mu.Unlock()
		a.dialogs.InformHotkeyRegistrationFailure(ctx, err)
		return err
	}

	a.mu.Lock()
	a.binding = b
	a.mu.Unlock()

	a.logger.Info("listening for global hotkey events", "shortcut", a.shortcut.String())
	hotkey.Listen(ctx, b, func() {
		a.logger.Debug("global hotkey pressed", "shortcut", a.shortcut.String())
		if !a.headless {
			runtime.EventsEmit(a.ctx, "hotkey:pressed")
		}
	})
	return nil
}

// shutdownHotkey stops the flows and releases the shortcut.
func (a *App) shutdownHotkey() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}
	if a.binding != nil {
		if err := a.binding.Unregister(); err != nil {
			a.logger.Warn("failed to unregister hotkey", "error", err)
		}
		a.binding = nil
	}
}

func (a *App) onShutdown(ctx context.Context) {
	a.shutdownHotkey()
}

// OnSecondInstanceLaunch is called when a second instance of the app is launched
func (a *App) OnSecondInstanceLaunch(secondInstanceData options.SecondInstanceData) {
	a.showWindow()
}

// domReady is called after front-end resources have been loaded
func (a *App) domReady(ctx context.Context) {
	runtime.EventsOn(ctx, "app:activate", func(optionalData ...interface{}) {
		a.showWindow()
	})
	if st := a.wizard.State(); st.Open {
		runtime.EventsEmit(ctx, "wizard:state", st)
	}
}

// HasAccessibilityPermissions reports the current permission state.
func (a *App) HasAccessibilityPermissions() bool {
	return a.wizard.HasAccessibilityPermissions()
}

// OpenAccessibilityPreferences opens the Accessibility pane.
func (a *App) OpenAccessibilityPreferences() {
	a.dialogs.OpenAccessibilityPreferences(a.ctx)
}

// ShowPermissionsWizard opens the wizard from the UI.
func (a *App) ShowPermissionsWizard() {
	a.dialogs.ShowAccessibilityPermissionsWizard(a.ctx, a.afterManualRequest)
}

// ShowPermissionsDialog opens the simple dialog from the UI.
func (a *App) ShowPermissionsDialog() {
	a.dialogs.ShowAccessibilityPermissionsDialog(a.ctx, a.afterManualRequest)
}

// afterManualRequest registers the hotkey once a flow started from the menu
// succeeds.
func (a *App) afterManualRequest(granted bool) {
	a.logger.Info("permission request finished", "granted", granted)
	if !granted {
		return
	}
	a.mu.Lock()
	ctx := a.runCtx
	a.mu.Unlock()
	if ctx != nil {
		a.startHotkey(ctx)
	}
}

// WizardNext advances the wizard.
func (a *App) WizardNext() wizard.State {
	return a.wizard.Next()
}

// WizardOpenSettings opens System Settings from the wizard.
func (a *App) WizardOpenSettings() wizard.State {
	return a.wizard.OpenSettings(a.ctx)
}

// WizardCheck re-checks the permission.
func (a *App) WizardCheck() wizard.State {
	return a.wizard.Check()
}

// WizardDismiss closes the wizard.
func (a *App) WizardDismiss() {
	a.wizard.Dismiss()
}

// GetStatus returns the current status for the UI
func (a *App) GetStatus() map[string]interface{} {
	a.mu.Lock()
	registered := a.binding != nil
	a.mu.Unlock()

	autoStart, err := a.dialogs.AutoStartEnabled()
	if err != nil {
		a.logger.Warn("failed to check auto start", "error", err)
	}
	return map[string]interface{}{
		"accessibility": a.checker.Trusted(),
		"hotkey":        registered,
		"shortcut":      a.shortcut.String(),
		"autoStart":     autoStart,
		"wizard":        a.wizard.State(),
	}
}

// createMenuBar creates the application menu bar
func (a *App) createMenuBar() *menu.Menu {
	appMenu := menu.NewMenu()

	fileMenu := appMenu.AddSubmenu("SlowQuit")
	fileMenu.AddText("Show SlowQuit", keys.CmdOrCtrl("0"), func(_ *menu.CallbackData) {
		a.showWindow()
	})
	autoStart, err := a.dialogs.AutoStartEnabled()
	if err != nil {
		a.logger.Warn("failed to check auto start", "error", err)
	}
	fileMenu.AddCheckbox("Start at Login", autoStart, nil, func(cd *menu.CallbackData) {
		a.toggleAutoStart(cd.MenuItem)
	})
	fileMenu.AddSeparator()
	fileMenu.AddText("Quit SlowQuit", nil, func(_ *menu.CallbackData) {
		runtime.Quit(a.ctx)
	})

	helpMenu := appMenu.AddSubmenu("Help")
	helpMenu.AddText("Check Permissions", nil, func(_ *menu.CallbackData) {
		if a.checker.Trusted() {
			runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
				Type:    runtime.InfoDialog,
				Title:   "Permissions Status",
				Message: fmt.Sprintf("Accessibility permissions are granted.\nGlobal hotkey (%s) should work.", a.shortcut),
			})
			return
		}
		a.ShowPermissionsDialog()
	})
	helpMenu.AddText("Permissions Wizard…", nil, func(_ *menu.CallbackData) {
		a.ShowPermissionsWizard()
	})
	helpMenu.AddText("Open Accessibility Settings", nil, func(_ *menu.CallbackData) {
		a.OpenAccessibilityPreferences()
	})

	return appMenu
}

// toggleAutoStart applies the checkbox state and resyncs it with the
// installed login item.
func (a *App) toggleAutoStart(item *menu.MenuItem) {
	if err := a.dialogs.SetAutoStart(item.Checked); err != nil {
		a.logf(slog.LevelError, "failed to change auto start: %v", err)
	}
	enabled, err := a.dialogs.AutoStartEnabled()
	if err != nil {
		a.logger.Warn("failed to check auto start", "error", err)
	}
	item.Checked = enabled
	if a.ctx != nil {
		runtime.MenuUpdateApplicationMenu(a.ctx)
	}
}

// showWindow shows and centers the application window
func (a *App) showWindow() {
	if a.ctx != nil {
		runtime.WindowShow(a.ctx)
		runtime.WindowUnminimise(a.ctx)
		runtime.WindowCenter(a.ctx)
	}
}

// wizardView renders the wizard in the app window through frontend events.
type wizardView struct {
	app *App
}

func (v *wizardView) Show(st wizard.State) {
	if v.app.ctx == nil {
		return
	}
	v.app.showWindow()
	runtime.EventsEmit(v.app.ctx, "wizard:state", st)
}

func (v *wizardView) Update(st wizard.State) {
	if v.app.ctx == nil {
		return
	}
	runtime.EventsEmit(v.app.ctx, "wizard:state", st)
}

func (v *wizardView) Close() {
	if v.app.ctx == nil {
		return
	}
	runtime.EventsEmit(v.app.ctx, "wizard:closed")
}
