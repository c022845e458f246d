//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// livescribeTheme is the default dark theme with a red record accent.
type livescribeTheme struct{}

func (t *livescribeTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.RGBA{18, 18, 18, 255}
	case theme.ColorNameForeground:
		return color.RGBA{200, 200, 200, 255}
	case theme.ColorNamePrimary:
		return color.RGBA{220, 40, 40, 255}
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (t *livescribeTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *livescribeTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *livescribeTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameText {
		return theme.DefaultTheme().Size(name) + 2
	}
	return theme.DefaultTheme().Size(name)
}
