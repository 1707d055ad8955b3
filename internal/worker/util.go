package worker

import (
	"strconv"

	"airwave/internal/notify"
)

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func defaultSendAlert(subject, body string) {
	notify.SendAlert(subject, body)
}
