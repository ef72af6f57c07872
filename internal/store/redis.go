// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/watch_companion/internal/activity"
	"github.com/relabs-tech/watch_companion/internal/geo"
	"github.com/relabs-tech/watch_companion/internal/watchface"
)

// Redis keeps each state object in a hash under <prefix>:<name> and the data
// log in a list of encoded records.
type Redis struct {
	client *redis.Client
	prefix string
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, opts Options) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: redis ping %s: %w", opts.Addr, err)
	}
	log.WithFields(log.Fields{"addr": opts.Addr, "db": opts.DB}).Info("store: connected to redis")

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "watch"
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) key(name string) string {
	return r.prefix + ":" + name
}

func (r *Redis) load(ctx context.Context, name string) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, r.key(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

func (r *Redis) save(ctx context.Context, name string, fields map[string]interface{}) error {
	if err := r.client.HSet(ctx, r.key(name), fields).Err(); err != nil {
		return fmt.Errorf("store: save %s: %w", name, err)
	}
	return nil
}

func (r *Redis) LoadSettings(ctx context.Context) (watchface.Settings, error) {
	fields, err := r.load(ctx, "settings")
	if err != nil {
		return watchface.Settings{}, err
	}
	return parseSettings(fields)
}

func (r *Redis) SaveSettings(ctx context.Context, s watchface.Settings) error {
	return r.save(ctx, "settings", settingsFields(s))
}

func (r *Redis) LoadCounter(ctx context.Context) (activity.Counter, error) {
	fields, err := r.load(ctx, "counter")
	if err != nil {
		return activity.Counter{}, err
	}
	return parseCounter(fields)
}

func (r *Redis) SaveCounter(ctx context.Context, c activity.Counter) error {
	return r.save(ctx, "counter", counterFields(c))
}

func (r *Redis) LoadPreviousFix(ctx context.Context) (geo.Fix, error) {
	fields, err := r.load(ctx, "fix")
	if err != nil {
		return geo.Fix{}, err
	}
	return parseFix(fields)
}

func (r *Redis) SavePreviousFix(ctx context.Context, f geo.Fix) error {
	return r.save(ctx, "fix", fixFields(f))
}

func (r *Redis) AppendRecord(ctx context.Context, rec activity.Record) error {
	b, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, r.key("datalog"), b).Err(); err != nil {
		return fmt.Errorf("store: append record: %w", err)
	}
	return nil
}

func (r *Redis) Records(ctx context.Context, n int) ([]activity.Record, error) {
	start := int64(0)
	if n > 0 {
		start = -int64(n)
	}
	raw, err := r.client.LRange(ctx, r.key("datalog"), start, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("store: read records: %w", err)
	}

	out := make([]activity.Record, 0, len(raw))
	for _, s := range raw {
		rec, err := activity.UnmarshalRecord([]byte(s))
		if err != nil {
			log.WithError(err).Warn("store: skipping corrupt data log record")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func settingsFields(s watchface.Settings) map[string]interface{} {
	return map[string]interface{}{
		"color_theme":           strconv.FormatBool(s.ColorTheme),
		"reset_time":            s.ResetTime,
		"speed_threshold":       s.SpeedThreshold,
		"battery_threshold":     s.BatteryThreshold,
		"pedometer_sensitivity": s.PedometerSensitivity,
	}
}

func parseSettings(f map[string]string) (watchface.Settings, error) {
	p := fieldParser{fields: f}
	s := watchface.Settings{
		ColorTheme:           p.boolField("color_theme"),
		ResetTime:            p.int32Field("reset_time"),
		SpeedThreshold:       p.int32Field("speed_threshold"),
		BatteryThreshold:     p.int32Field("battery_threshold"),
		PedometerSensitivity: p.int32Field("pedometer_sensitivity"),
	}
	return s, p.err
}

func counterFields(c activity.Counter) map[string]interface{} {
	return map[string]interface{}{
		"sleep_time": c.SleepTime,
		"sit_time":   c.SitTime,
		"walk_time":  c.WalkTime,
		"jog_time":   c.JogTime,
		"steps":      c.Steps,
		"timestamp":  c.Timestamp,
	}
}

func parseCounter(f map[string]string) (activity.Counter, error) {
	p := fieldParser{fields: f}
	c := activity.Counter{
		SleepTime: p.uint32Field("sleep_time"),
		SitTime:   p.uint32Field("sit_time"),
		WalkTime:  p.uint32Field("walk_time"),
		JogTime:   p.uint32Field("jog_time"),
		Steps:     p.uint32Field("steps"),
		Timestamp: p.uint32Field("timestamp"),
	}
	return c, p.err
}

func fixFields(f geo.Fix) map[string]interface{} {
	return map[string]interface{}{
		"lat":          strconv.FormatFloat(f.Latitude, 'f', -1, 64),
		"lon":          strconv.FormatFloat(f.Longitude, 'f', -1, 64),
		"timestamp_ms": f.TimestampMillis,
	}
}

func parseFix(f map[string]string) (geo.Fix, error) {
	p := fieldParser{fields: f}
	fix := geo.Fix{
		Latitude:        p.float64Field("lat"),
		Longitude:       p.float64Field("lon"),
		TimestampMillis: p.int64Field("timestamp_ms"),
	}
	return fix, p.err
}

// fieldParser converts hash fields and keeps the first error.
type fieldParser struct {
	fields map[string]string
	err    error
}

func (p *fieldParser) raw(name string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.fields[name]
	if !ok {
		p.err = fmt.Errorf("store: field %q missing", name)
	}
	return v, ok
}

func (p *fieldParser) fail(name string, err error) {
	p.err = fmt.Errorf("store: field %q: %w", name, err)
}

func (p *fieldParser) boolField(name string) bool {
	v, ok := p.raw(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(name, err)
	}
	return b
}

func (p *fieldParser) int32Field(name string) int32 {
	v, ok := p.raw(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		p.fail(name, err)
	}
	return int32(n)
}

func (p *fieldParser) uint32Field(name string) uint32 {
	v, ok := p.raw(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		p.fail(name, err)
	}
	return uint32(n)
}

func (p *fieldParser) int64Field(name string) int64 {
	v, ok := p.raw(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(name, err)
	}
	return n
}

func (p *fieldParser) float64Field(name string) float64 {
	v, ok := p.raw(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(name, err)
	}
	return f
}
