package telemetry

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// StreamSource adapts a line-oriented reader into a PositionSource. Each line
// is "lat,lng" with an optional third accuracy field; malformed lines are
// logged and skipped. It backs the agent binary when fixes arrive over a pipe
// or a replayed trace file.
type StreamSource struct {
	r      io.Reader
	logger *slog.Logger
	now    func() time.Time
}

func NewStreamSource(r io.Reader, logger *slog.Logger) *StreamSource {
	return &StreamSource{r: r, logger: logger, now: time.Now}
}

func (s *StreamSource) Watch(ctx context.Context) (<-chan Sample, error) {
	out := make(chan Sample)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(s.r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			sample, err := parseSample(line, s.now())
			if err != nil {
				s.logger.Warn("Skipping malformed position line",
					slog.String("line", line),
					slog.Any("error", err),
				)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- sample:
			}
		}

		if err := scanner.Err(); err != nil {
			s.logger.Error("Position stream read failed", slog.Any("error", err))
		}
	}()

	return out, nil
}

func parseSample(line string, observed time.Time) (Sample, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return Sample{}, strconv.ErrSyntax
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Sample{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Sample{}, err
	}

	sample := Sample{Observed: observed}
	sample.Position.Lat = lat
	sample.Position.Lng = lng

	if len(parts) > 2 {
		acc, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return Sample{}, err
		}
		sample.Accuracy = acc
	}

	return sample, nil
}
