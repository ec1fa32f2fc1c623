package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Publisher ships aggregated entries, normally to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct entries before an early flush
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry counts repeats of one (level, message, fields) combination.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates noisy warnings such as repeated degraded sub-scores
// so downstream sees one entry with a count per flush window.
type LogCollector struct {
	config  *CollectionConfig
	entries map[string]*AggregatedLogEntry
	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	c := &LogCollector{
		config:  config,
		entries: make(map[string]*AggregatedLogEntry),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}) {
	now := time.Now()
	key := entryKey(level, message, fields)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.entries[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.entries) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// Pending returns the number of distinct entries waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func entryKey(level, message string, fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "error" || k == "duration_ms" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte('|')
	b.WriteString(message)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, fields[k])
	}
	return b.String()
}

func (c *LogCollector) loop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.done:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			return
		}
	}
}

func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 {
		return
	}
	if c.config.Publisher == nil {
		c.entries = make(map[string]*AggregatedLogEntry)
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Count > batch[j].Count })
	c.entries = make(map[string]*AggregatedLogEntry)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "log collector: publish %d entries: %v\n", len(batch), err)
		}
	}()
}

// Close flushes what is pending and waits for in-flight publishes.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}
