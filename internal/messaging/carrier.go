package messaging

import (
	"slices"

	"github.com/segmentio/kafka-go"
)

// headerCarrier exposes Kafka message headers to the OpenTelemetry propagator.
type headerCarrier struct {
	headers *[]kafka.Header
}

func carrierFor(msg *kafka.Message) headerCarrier {
	return headerCarrier{headers: &msg.Headers}
}

func (c headerCarrier) Get(key string) string {
	i := slices.IndexFunc(*c.headers, func(h kafka.Header) bool { return h.Key == key })
	if i < 0 {
		return ""
	}
	return string((*c.headers)[i].Value)
}

func (c headerCarrier) Set(key, value string) {
	i := slices.IndexFunc(*c.headers, func(h kafka.Header) bool { return h.Key == key })
	if i >= 0 {
		(*c.headers)[i].Value = []byte(value)
		return
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
