package banner

import (
	"github.com/charmbracelet/lipgloss"

	"soakq/internal/tui/styles"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
   _____             __   ____ 
  / ___/____  ____ _/ /__/ __ \
  \__ \/ __ \/ __ '/ //_/ / / /
 ___/ / /_/ / /_/ / ,< / /_/ / 
/____/\____/\__,_/_/|_|\___\_\ `

	return "\n" + style.Render(ascii) + "\n"
}
