package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"platen/internal/config"
	"platen/internal/post"
	"platen/internal/site"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse posts in an interactive terminal UI",
	Long: `Opens a terminal UI over the content tree: a filterable post list
with a rendered preview pane. Enter opens the selected post, esc returns
to the list, q quits. Drafts and future posts are included; this is a
writing tool, not a publishing surface.`,
	RunE: runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadSite()
	if err != nil {
		return err
	}

	final, err := tea.NewProgram(newBrowseModel(root, cfg), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(browseModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

// browseItem adapts a post to the bubbles list.
type browseItem struct {
	post *post.Post
}

func (i browseItem) Title() string {
	title := i.post.Meta.Title
	if title == "" {
		title = i.post.Slug
	}
	if i.post.Meta.Draft {
		title += " (draft)"
	}
	return title
}

func (i browseItem) Description() string { return postByline(i.post) }

func (i browseItem) FilterValue() string {
	return i.post.Meta.Title + " " + i.post.Meta.Category + " " + i.post.Meta.Author
}

// browseMode selects which pane owns the screen.
type browseMode int

const (
	browseList browseMode = iota
	browsePreview
)

// postsLoadedMsg delivers the parsed content tree to the UI.
type postsLoadedMsg struct {
	posts []*post.Post
	err   error
}

type browseModel struct {
	root string
	cfg  *config.Config

	list     list.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	mode    browseMode
	loading bool
	err     error

	width, height int
}

func newBrowseModel(root string, cfg *config.Config) browseModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = cfg.Site.Title
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)

	return browseModel{
		root:     root,
		cfg:      cfg,
		list:     l,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		loading:  true,
	}
}

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadPosts(m.root, m.cfg))
}

// loadPosts parses the content tree off the UI goroutine so the spinner
// stays responsive on large sites.
func loadPosts(root string, cfg *config.Config) tea.Cmd {
	return func() tea.Msg {
		builder, err := site.NewBuilder(root, cfg, nil, logger)
		if err != nil {
			return postsLoadedMsg{err: err}
		}
		posts, err := builder.Posts(context.Background())
		return postsLoadedMsg{posts: posts, err: err}
	}
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, msg.Height)
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 1
		// Re-wrap previews to the new width.
		m.renderer = nil
		return m, nil

	case postsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, 0, len(msg.posts))
		for _, p := range msg.posts {
			items = append(items, browseItem{post: p})
		}
		m.list.Title = fmt.Sprintf("%s • %d posts", m.cfg.Site.Title, len(items))
		return m, m.list.SetItems(items)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.mode == browsePreview {
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "esc", "backspace":
				m.mode = browseList
				return m, nil
			}
		} else if m.list.FilterState() != list.Filtering {
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "enter":
				if item, ok := m.list.SelectedItem().(browseItem); ok {
					if err := m.showPreview(item.post); err == nil {
						m.mode = browsePreview
					}
				}
				return m, nil
			}
		}
	}

	switch m.mode {
	case browsePreview:
		m.viewport, cmd = m.viewport.Update(msg)
	default:
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

// showPreview renders the selected post into the viewport.
func (m *browseModel) showPreview(p *post.Post) error {
	if m.renderer == nil {
		width := m.viewport.Width - 2
		if width < 20 {
			width = 80
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return err
		}
		m.renderer = r
	}

	body, err := m.renderer.Render(string(p.RawBody))
	if err != nil {
		return err
	}

	header := headingStyle.Render(browseItem{post: p}.Title())
	if byline := postByline(p); byline != "" {
		header += "\n" + faintStyle.Render(byline)
	}
	m.viewport.SetContent(header + "\n" + body)
	m.viewport.GotoTop()
	return nil
}

func (m browseModel) View() string {
	if m.loading {
		return fmt.Sprintf("\n  %s loading posts...\n", m.spinner.View())
	}
	if m.err != nil {
		return fmt.Sprintf("\n  error: %v\n", m.err)
	}

	if m.mode == browsePreview {
		help := faintStyle.Render(" esc: back • q: quit • ↑/↓: scroll")
		return m.viewport.View() + "\n" + help
	}
	return m.list.View()
}
