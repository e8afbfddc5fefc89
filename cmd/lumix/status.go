package main

import (
	"io"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/vsariola/lumix/engine"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const meterWidth = 8

const statusLine = `{{ .Position }} {{ printf "%.1f" .Tempo }} BPM [{{ template "meter" .Master }}]
{{- range .Tracks }} {{ .Kind }} {{ .Name | trunc 12 }} [{{ template "meter" .Meter }}]{{ end }}
{{- define "meter" }}{{ repeat .Lit "#" }}{{ repeat .Unlit "." }}{{ end }}`

type (
	statusData struct {
		Position string
		Tempo    float64
		Master   meter
		Tracks   []trackStatus
	}

	trackStatus struct {
		Name  string
		Kind  string
		Meter meter
	}

	meter struct{ Lit, Unlit int }
)

var (
	statusTemplate = template.Must(template.New("status").Funcs(sprig.TxtFuncMap()).Parse(statusLine))
	titleCaser     = cases.Title(language.English)
)

func newMeter(l engine.Level) meter {
	peak := max(l[0], l[1])
	lit := min(int(peak*meterWidth+0.5), meterWidth)
	return meter{Lit: lit, Unlit: meterWidth - lit}
}

func status(s *engine.Session) statusData {
	t := s.Transport()
	d := statusData{
		Position: t.MusicalTime(t.CurrentTick()).String(),
		Tempo:    t.Tempo(),
		Master:   newMeter(s.Level(engine.MasterID)),
	}
	for _, track := range s.Tracks() {
		d.Tracks = append(d.Tracks, trackStatus{
			Name:  track.Name,
			Kind:  titleCaser.String(track.Kind().String()),
			Meter: newMeter(s.Level(track.ID)),
		})
	}
	return d
}

func renderStatus(w io.Writer, s *engine.Session) error {
	return statusTemplate.Execute(w, status(s))
}
