package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

// stopper is implemented by publishers that flush in the background.
type stopper interface {
	Stop()
}

// publisherCache keeps one publisher per topic for the life of the process.
// It is only touched from the Run goroutine.
type publisherCache struct {
	factory publisherFactory
	byTopic map[string]publisher
}

func newPublisherCache(factory publisherFactory) *publisherCache {
	return &publisherCache{factory: factory, byTopic: map[string]publisher{}}
}

func (c *publisherCache) get(topic string) publisher {
	if pub, ok := c.byTopic[topic]; ok {
		return pub
	}
	pub := c.factory(topic)
	if pub != nil {
		c.byTopic[topic] = pub
	}
	return pub
}

func (c *publisherCache) stopAll() {
	for topic, pub := range c.byTopic {
		if st, ok := pub.(stopper); ok {
			st.Stop()
		}
		delete(c.byTopic, topic)
	}
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{inner: p}
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := p.inner.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return gcpResult{inner: res}
}

func (p gcpPublisher) Stop() { p.inner.Stop() }

type gcpResult struct {
	inner *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.inner == nil {
		return "", errors.New("publish result is nil")
	}
	return r.inner.Get(ctx)
}
