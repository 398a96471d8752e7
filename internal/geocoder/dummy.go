package geocoder

import (
	"context"
	"sync"
	"sync/atomic"
)

// DummyClient answers every lookup with fixed values. After Fail every
// call returns the given error instead. It counts calls so tests can assert
// on traffic.
type DummyClient struct {
	mu       sync.RWMutex
	info     AddressInfo
	polygons map[string]string
	err      error

	addressCalls atomic.Int32
	polygonCalls atomic.Int32
}

func NewDummyClient(info AddressInfo, polygons map[string]string) *DummyClient {
	p := make(map[string]string, len(polygons))
	for k, v := range polygons {
		p[k] = v
	}
	return &DummyClient{info: info, polygons: p}
}

// Fail makes every following call return err. Fail(nil) restores answers.
func (d *DummyClient) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *DummyClient) ResolveAddress(ctx context.Context, addr Address) (*AddressInfo, error) {
	d.addressCalls.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	info := d.info
	return &info, nil
}

func (d *DummyClient) ResolvePolygonCode(ctx context.Context, zone string, info *AddressInfo) (string, error) {
	d.polygonCalls.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return "", d.err
	}
	return d.polygons[zone], nil
}

func (d *DummyClient) AddressCalls() int { return int(d.addressCalls.Load()) }
func (d *DummyClient) PolygonCalls() int { return int(d.polygonCalls.Load()) }

// NullClient is used when no geocoder is deployed; every lookup fails.
type NullClient struct{}

func (NullClient) ResolveAddress(ctx context.Context, addr Address) (*AddressInfo, error) {
	return nil, notFound("geocoding is not configured")
}

func (NullClient) ResolvePolygonCode(ctx context.Context, zone string, info *AddressInfo) (string, error) {
	return "", notFound("geocoding is not configured")
}
