package services

import (
	"context"
	"time"

	"agrosense/internal/models"
	"agrosense/pkg/logger"
)

// Sink stores flattened readings
type Sink interface {
	SaveReadings(ctx context.Context, rows []models.ReadingRow) error
	LastTimestamp(ctx context.Context, masterID, deviceID string) (time.Time, error)
}

// ArchiveService copies new points of every device series into the archive
type ArchiveService struct {
	sink Sink

	// Input channel (written by the dashboard session)
	SeriesChan chan models.DeviceSeries

	// newest archived point per master/device, in milliseconds
	last map[string]int64

	writeTimeout time.Duration
}

// ArchiveServiceConfig holds configuration for archive service
type ArchiveServiceConfig struct {
	ChannelSize  int
	WriteTimeout time.Duration
}

// DefaultArchiveServiceConfig returns default configuration
func DefaultArchiveServiceConfig() ArchiveServiceConfig {
	return ArchiveServiceConfig{
		ChannelSize:  32,
		WriteTimeout: 10 * time.Second,
	}
}

// NewArchiveService creates a new archive service
func NewArchiveService(sink Sink, config ArchiveServiceConfig) *ArchiveService {
	return &ArchiveService{
		sink:         sink,
		SeriesChan:   make(chan models.DeviceSeries, config.ChannelSize),
		last:         make(map[string]int64),
		writeTimeout: config.WriteTimeout,
	}
}

// Start processes series until the context is cancelled or the channel closes
func (s *ArchiveService) Start(ctx context.Context) {
	logger.Printf("ArchiveService: Starting...")

	for {
		select {
		case <-ctx.Done():
			logger.Printf("ArchiveService: Shutting down...")
			return
		case series, ok := <-s.SeriesChan:
			if !ok {
				logger.Printf("ArchiveService: Series channel closed, shutting down...")
				return
			}
			s.processSeries(ctx, series)
		}
	}
}

// processSeries archives the points newer than the last archived one
func (s *ArchiveService) processSeries(ctx context.Context, series models.DeviceSeries) {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	key := seriesKey(series)
	last, known := s.last[key]
	if !known {
		ts, err := s.sink.LastTimestamp(ctx, series.MasterID, series.DeviceID)
		if err != nil {
			logger.Errorf("ArchiveService: failed to read last timestamp for %s: %v", key, err)
			return
		}
		if !ts.IsZero() {
			last = ts.UnixMilli()
		}
	}

	var fresh []models.DataPoint
	for _, p := range series.Points {
		if p.Timestamp > last {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		s.last[key] = last
		return
	}

	rows := FlattenSeries(series.MasterID, series.DeviceID, fresh)
	if err := s.sink.SaveReadings(ctx, rows); err != nil {
		logger.Errorf("ArchiveService: failed to save %d readings for %s: %v", len(rows), key, err)
		return
	}

	s.last[key] = fresh[len(fresh)-1].Timestamp
	logger.Printf("ArchiveService: Archived %d points (%d readings) for %s", len(fresh), len(rows), key)
}

// seriesKey identifies a device; slave ids repeat across masters
func seriesKey(series models.DeviceSeries) string {
	return series.MasterID + "/" + series.DeviceID
}

// FlattenSeries turns points into one row per finite numeric reading,
// ordered by timestamp then key
func FlattenSeries(masterID, deviceID string, points []models.DataPoint) []models.ReadingRow {
	var rows []models.ReadingRow
	for _, p := range points {
		for _, k := range p.Readings.Keys() {
			v, ok := p.Number(k)
			if !ok {
				continue
			}
			rows = append(rows, models.ReadingRow{
				Timestamp: p.Time(),
				MasterID:  masterID,
				DeviceID:  deviceID,
				SensorKey: k,
				Value:     v,
			})
		}
	}
	return rows
}
