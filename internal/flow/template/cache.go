// Package template holds the per-exporter template cache that lets a
// NetFlow v9/IPFIX collector decode data records arriving after their
// defining template record, and on a separate connection entirely
// than the one that first announced it.
package template

import (
	"sync"

	"github.com/netgauze-go/netgauze/internal/flow"
)

// Key identifies a template by the exporter that defined it and the
// template ID it was defined under. Template IDs are only unique per
// exporter, never globally.
type Key struct {
	ExporterID uint32
	TemplateID uint16
}

// Entry is a cached template: either a plain data template or an
// options template, never both.
type Entry struct {
	Fields       []flow.FieldSpecifier
	IsOptions    bool
	ScopeFields  []flow.FieldSpecifier
	OptionFields []flow.FieldSpecifier
}

// Cache is a concurrency-safe map of Key to Entry. Install is
// idempotent: re-installing the same (exporter, template ID) with an
// identical field list is a no-op; installing a different field list
// for an already-known key replaces it, matching how real exporters
// redefine templates after a renumbering.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]Entry)}
}

// Install records or replaces the template identified by key.
func (c *Cache) Install(key Key, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

// InstallTemplateRecord installs a plain data template from a decoded
// TemplateRecord.
func (c *Cache) InstallTemplateRecord(exporterID uint32, r flow.TemplateRecord) {
	c.Install(Key{ExporterID: exporterID, TemplateID: r.TemplateID}, Entry{Fields: r.Fields})
}

// InstallOptionsTemplateRecord installs an options template from a
// decoded OptionsTemplateRecord.
func (c *Cache) InstallOptionsTemplateRecord(exporterID uint32, r flow.OptionsTemplateRecord) {
	c.Install(Key{ExporterID: exporterID, TemplateID: r.TemplateID}, Entry{
		IsOptions:    true,
		ScopeFields:  r.ScopeFields,
		OptionFields: r.OptionFields,
		Fields:       append(append([]flow.FieldSpecifier{}, r.ScopeFields...), r.OptionFields...),
	})
}

// Lookup returns the template installed under key, if any.
func (c *Cache) Lookup(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Withdraw removes a template, e.g. on receipt of a zero-field
// template record (RFC 3954 §5.3's template-withdraw convention) or
// exporter teardown.
func (c *Cache) Withdraw(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// WithdrawExporter removes every template belonging to exporterID,
// e.g. when a NetFlow v9 session resets its sequence numbers.
func (c *Cache) WithdrawExporter(exporterID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.ExporterID == exporterID {
			delete(c.entries, k)
		}
	}
}

// DecodeDataSet splits a flow.DataSet's raw records against the
// installed template for (exporterID, set.TemplateID). When no
// template has been installed yet it returns ok=false and a nil
// error; Collector skips such a set rather than buffering it.
func (c *Cache) DecodeDataSet(exporterID uint32, set flow.DataSet) ([][]flow.Value, bool, error) {
	entry, ok := c.Lookup(Key{ExporterID: exporterID, TemplateID: set.TemplateID})
	if !ok {
		return nil, false, nil
	}
	values, err := flow.DecodeDataRecords(set.Records, entry.Fields)
	if err != nil {
		return nil, true, err
	}
	return values, true, nil
}
