package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/deptree/pkg/deps"
)

// discoveredMsg reports a package newly reached by the walk.
type discoveredMsg struct{ ref deps.PackageRef }

// resolvedMsg carries the outcome of the walk.
type resolvedMsg struct {
	result deps.Result
	err    error
}

type frameMsg struct{}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ProgressModel is the bubbletea model shown by alldeps --progress.
type ProgressModel struct {
	Title string
	Count int
	Last  string

	frame  int
	start  time.Time
	done   bool
	result deps.Result
	err    error
}

func newProgressModel(title string) ProgressModel {
	return ProgressModel{Title: title, start: time.Now()}
}

func nextFrame() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m ProgressModel) Init() tea.Cmd {
	return nextFrame()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.err = context.Canceled
			return m, tea.Quit
		}
	case discoveredMsg:
		m.Count++
		m.Last = msg.ref.String()
	case resolvedMsg:
		m.done = true
		m.result, m.err = msg.result, msg.err
		return m, tea.Quit
	case frameMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, nextFrame()
	}
	return m, nil
}

func (m ProgressModel) View() string {
	if m.done {
		return ""
	}
	frame := styleIconSpinner.Render(spinnerFrames[m.frame%len(spinnerFrames)])
	line := fmt.Sprintf("%s %s %s", frame, StyleTitle.Render(m.Title),
		StyleNumber.Render(fmt.Sprintf("%d packages", m.Count)))
	if m.Last != "" {
		line += " " + StyleDim.Render(iconArrow+" "+m.Last)
	}
	elapsed := time.Since(m.start).Round(100 * time.Millisecond)
	return line + "\n" + StyleDim.Render(fmt.Sprintf("  %s elapsed · q to cancel", elapsed)) + "\n"
}

// progressUI drives a ProgressModel while a walk runs in the background.
type progressUI struct {
	program *tea.Program
}

func newProgressUI(ctx context.Context, title string) *progressUI {
	return &progressUI{
		program: tea.NewProgram(newProgressModel(title),
			tea.WithContext(ctx),
			tea.WithOutput(os.Stderr),
		),
	}
}

// discovered is installed as the resolver's progress callback.
func (u *progressUI) discovered(ref deps.PackageRef) {
	u.program.Send(discoveredMsg{ref: ref})
}

// run starts resolve in a goroutine and blocks until it finishes or the
// user quits. Quitting cancels the context handed to resolve.
func (u *progressUI) run(ctx context.Context, resolve func(context.Context) (deps.Result, error)) (deps.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		res, err := resolve(ctx)
		u.program.Send(resolvedMsg{result: res, err: err})
	}()

	final, err := u.program.Run()
	if err != nil {
		return nil, err
	}
	m := final.(ProgressModel)
	return m.result, m.err
}
