package view

import "time"

// Settings are site-wide values every template can read as .Site.
type Settings struct {
	Title       string
	Description string
	BaseURL     string
}

// site is the per-render copy handed to templates.
type site struct {
	Settings
	Year int
}

func (s Settings) forRender(now time.Time) site {
	return site{Settings: s, Year: now.Year()}
}
