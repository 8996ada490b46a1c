// Copyright 2026 The HRMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mqtt

import (
	"fmt"
	"time"

	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const (
	metricsNamespace = "hrmq"
	metricsSubsystem = "mqtt"
)

type metrics struct {
	packets     *packetsMetrics
	connections *connectionsMetrics
	messages    *messagesMetrics
	latencies   *latenciesMetrics
}

type packetsMetrics struct {
	receivedTotal *prometheus.CounterVec
	receivedBytes *prometheus.CounterVec
	sentTotal     *prometheus.CounterVec
	sentBytes     *prometheus.CounterVec
}

type connectionsMetrics struct {
	connectTotal      prometheus.Counter
	disconnectTotal   prometheus.Counter
	activeConnections prometheus.Gauge
	evictedTotal      prometheus.Counter
}

type messagesMetrics struct {
	receivedTotal       *prometheus.CounterVec
	deliveredTotal      *prometheus.CounterVec
	droppedTotal        *prometheus.CounterVec
	deliveryFailedTotal prometheus.Counter
	retained            prometheus.Gauge
	pendingDeliveries   prometheus.Gauge
}

type latenciesMetrics struct {
	connectSeconds *prometheus.HistogramVec
	pingSeconds    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer, log *logger.Logger) *metrics {
	mt := &metrics{
		packets:     newPacketsMetrics(),
		connections: newConnectionsMetrics(),
		messages:    newMessagesMetrics(),
		latencies:   newLatenciesMetrics(),
	}

	if reg != nil {
		if err := mt.register(reg); err != nil {
			log.Error().Msg("Failed to register metrics: " + err.Error())
		}
	}

	return mt
}

func counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
	}
}

func gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
	}
}

func newPacketsMetrics() *packetsMetrics {
	return &packetsMetrics{
		receivedTotal: prometheus.NewCounterVec(
			counterOpts("packets_received_total", "Number of packets received"),
			[]string{"type"},
		),
		receivedBytes: prometheus.NewCounterVec(
			counterOpts("packets_received_bytes", "Number of bytes received"),
			[]string{"type"},
		),
		sentTotal: prometheus.NewCounterVec(
			counterOpts("packets_sent_total", "Number of packets sent"),
			[]string{"type"},
		),
		sentBytes: prometheus.NewCounterVec(
			counterOpts("packets_sent_bytes", "Number of bytes sent"),
			[]string{"type"},
		),
	}
}

func newConnectionsMetrics() *connectionsMetrics {
	return &connectionsMetrics{
		connectTotal: prometheus.NewCounter(
			counterOpts("connected_total", "Number of connections"),
		),
		disconnectTotal: prometheus.NewCounter(
			counterOpts("disconnected_total", "Number of disconnections"),
		),
		activeConnections: prometheus.NewGauge(
			gaugeOpts("active_connections", "Number of active MQTT connections"),
		),
		evictedTotal: prometheus.NewCounter(
			counterOpts("evicted_sessions_total",
				"Number of sessions evicted by a new connection with the same client ID"),
		),
	}
}

func newMessagesMetrics() *messagesMetrics {
	return &messagesMetrics{
		receivedTotal: prometheus.NewCounterVec(
			counterOpts("messages_received_total", "Number of application messages received"),
			[]string{"qos"},
		),
		deliveredTotal: prometheus.NewCounterVec(
			counterOpts("messages_delivered_total",
				"Number of application messages queued for delivery to subscribers"),
			[]string{"qos"},
		),
		droppedTotal: prometheus.NewCounterVec(
			counterOpts("messages_dropped_total", "Number of application messages dropped"),
			[]string{"reason"},
		),
		deliveryFailedTotal: prometheus.NewCounter(
			counterOpts("delivery_failed_total",
				"Number of messages not acknowledged by the subscriber after all retries"),
		),
		retained: prometheus.NewGauge(
			gaugeOpts("retained_messages", "Number of retained messages"),
		),
		pendingDeliveries: prometheus.NewGauge(
			gaugeOpts("pending_deliveries", "Number of QoS 1 and QoS 2 deliveries not acknowledged"),
		),
	}
}

func newLatenciesMetrics() *latenciesMetrics {
	buckets := []float64{
		0.00010, 0.00025, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	}

	return &latenciesMetrics{
		connectSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "connect_latency_seconds",
				Help: "Duration in seconds from the time the CONNECT packet is received until " +
					"the time the CONNACK packet is sent",
				Buckets: buckets,
			}, []string{"code"},
		),
		pingSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "ping_latency_seconds",
				Help: "Duration in seconds from the time the PINGREQ packet is received until " +
					"the time the PINGRESP packet is queued",
				Buckets: buckets,
			},
		),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.packets.receivedTotal,
		m.packets.receivedBytes,
		m.packets.sentTotal,
		m.packets.sentBytes,
		m.connections.connectTotal,
		m.connections.disconnectTotal,
		m.connections.activeConnections,
		m.connections.evictedTotal,
		m.messages.receivedTotal,
		m.messages.deliveredTotal,
		m.messages.droppedTotal,
		m.messages.deliveryFailedTotal,
		m.messages.retained,
		m.messages.pendingDeliveries,
		m.latencies.connectSeconds,
		m.latencies.pingSeconds,
	}

	var err error
	for _, c := range collectors {
		err = multierr.Append(err, reg.Register(c))
	}
	return err
}

func (m *metrics) packetReceived(pkt packet.Packet) {
	lb := prometheus.Labels{"type": pkt.Type().String()}
	m.packets.receivedTotal.With(lb).Inc()
	m.packets.receivedBytes.With(lb).Add(float64(pkt.Size()))
}

func (m *metrics) packetSent(pkt packet.Packet) {
	lb := prometheus.Labels{"type": pkt.Type().String()}
	m.packets.sentTotal.With(lb).Inc()
	m.packets.sentBytes.With(lb).Add(float64(pkt.Size()))
}

func (m *metrics) connected() {
	m.connections.connectTotal.Inc()
	m.connections.activeConnections.Inc()
}

func (m *metrics) disconnected() {
	m.connections.disconnectTotal.Inc()
	m.connections.activeConnections.Dec()
}

func (m *metrics) evicted() {
	m.connections.evictedTotal.Inc()
}

func (m *metrics) messageReceived(qos packet.QoS) {
	m.messages.receivedTotal.With(prometheus.Labels{"qos": fmt.Sprint(qos)}).Inc()
}

func (m *metrics) messageDelivered(qos packet.QoS) {
	m.messages.deliveredTotal.With(prometheus.Labels{"qos": fmt.Sprint(qos)}).Inc()
}

func (m *metrics) messageDropped(reason string) {
	m.messages.droppedTotal.With(prometheus.Labels{"reason": reason}).Inc()
}

func (m *metrics) deliveryFailed() {
	m.messages.deliveryFailedTotal.Inc()
}

func (m *metrics) retainedMessages(n int) {
	m.messages.retained.Set(float64(n))
}

func (m *metrics) pendingDeliveries(delta int) {
	m.messages.pendingDeliveries.Add(float64(delta))
}

func (m *metrics) recordConnectLatency(d time.Duration, code packet.ReturnCode) {
	lb := prometheus.Labels{"code": fmt.Sprint(int(code))}
	m.latencies.connectSeconds.With(lb).Observe(d.Seconds())
}

func (m *metrics) recordPingLatency(d time.Duration) {
	m.latencies.pingSeconds.Observe(d.Seconds())
}
