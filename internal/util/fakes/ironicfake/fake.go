// Copyright 2024 Alexandre Mahdhaoui
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

// Package ironicfake serves an in-memory subset of the bare-metal management
// API and publishes the lifecycle notifications the real service would.
package ironicfake

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/alexandremahdhaoui/bmnotify/internal/util/httputil"
	"github.com/alexandremahdhaoui/bmnotify/pkg/broker"
	"github.com/alexandremahdhaoui/bmnotify/pkg/notification"
)

// PublishFunc receives every notification the fake emits.
type PublishFunc func(level broker.Level, body []byte)

// Request is a request received by the fake.
type Request struct {
	Method string
	Path   string
	Body   string
}

type object = map[string]any

// Fake is an in-memory bare-metal API.
type Fake struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	nodes    map[string]object
	chassis  map[string]object
	ports    map[string]object
	pending  map[string]string
	dropped  sets.Set[string]
	requests []Request

	publish PublishFunc
}

// New starts a fake publishing notifications through publish, which may be nil.
// The server is stopped on test cleanup.
func New(t *testing.T, publish PublishFunc) *Fake {
	t.Helper()

	f := newFake(t, publish)
	f.server = httptest.NewServer(f.mux())
	t.Cleanup(f.server.Close)
	return f
}

// NewTLS starts a fake serving HTTPS with cert.
func NewTLS(t *testing.T, publish PublishFunc, cert tls.Certificate) *Fake {
	t.Helper()

	f := newFake(t, publish)
	f.server = httptest.NewUnstartedServer(f.mux())
	f.server.TLS = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	f.server.StartTLS()
	t.Cleanup(f.server.Close)
	return f
}

func newFake(t *testing.T, publish PublishFunc) *Fake {
	return &Fake{
		t:       t,
		nodes:   map[string]object{},
		chassis: map[string]object{},
		ports:   map[string]object{},
		pending: map[string]string{},
		dropped: sets.New[string](),
		publish: publish,
	}
}

// NewWithBasicAuth starts a fake that requires HTTP basic credentials.
func NewWithBasicAuth(t *testing.T, publish PublishFunc, user, password string) *Fake {
	t.Helper()

	f := New(t, publish)
	f.server.Config.Handler = httputil.BasicAuth(f.mux(), httputil.StaticCredentials(user, password))
	return f
}

// Endpoint returns the API root, suitable as the client endpoint.
func (f *Fake) Endpoint() string {
	return f.server.URL + "/v1/"
}

// Drop suppresses future notifications of the given event types.
func (f *Fake) Drop(eventTypes ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dropped.Insert(eventTypes...)
	return f
}

// Requests returns the requests received so far.
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Node returns a copy of the stored node, or nil.
func (f *Fake) Node(id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	return clone(f.nodes[id])
}

// Chassis returns a copy of the stored chassis, or nil.
func (f *Fake) Chassis(id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	return clone(f.chassis[id])
}

// Port returns a copy of the stored port, or nil.
func (f *Fake) Port(id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	return clone(f.ports[id])
}

func (f *Fake) mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/nodes", f.createNode)
	mux.HandleFunc("GET /v1/nodes/{id}", f.getNode)
	mux.HandleFunc("PATCH /v1/nodes/{id}", f.patchNode)
	mux.HandleFunc("DELETE /v1/nodes/{id}", f.deleteNode)
	mux.HandleFunc("PUT /v1/nodes/{id}/states/power", f.setPowerState)
	mux.HandleFunc("PUT /v1/nodes/{id}/states/provision", f.setProvisionState)
	mux.HandleFunc("PUT /v1/nodes/{id}/maintenance", f.setMaintenance)
	mux.HandleFunc("DELETE /v1/nodes/{id}/maintenance", f.unsetMaintenance)

	mux.HandleFunc("POST /v1/chassis", f.createChassis)
	mux.HandleFunc("PATCH /v1/chassis/{id}", f.patchChassis)
	mux.HandleFunc("DELETE /v1/chassis/{id}", f.deleteChassis)

	mux.HandleFunc("POST /v1/ports", f.createPort)
	mux.HandleFunc("PATCH /v1/ports/{id}", f.patchPort)
	mux.HandleFunc("DELETE /v1/ports/{id}", f.deletePort)

	return f.record(mux)
}

func (f *Fake) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)

		f.mu.Lock()
		f.requests = append(f.requests, Request{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		f.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// Nodes

func (f *Fake) createNode(w http.ResponseWriter, r *http.Request) {
	var req object
	if !f.decode(w, r, &req) {
		return
	}

	f.mu.Lock()
	node := object{
		"uuid":            uuid.NewString(),
		"name":            req["name"],
		"driver":          req["driver"],
		"driver_info":     req["driver_info"],
		"chassis_uuid":    req["chassis_uuid"],
		"power_state":     nil,
		"provision_state": "enroll",
		"maintenance":     false,
		"instance_uuid":   nil,
		"extra":           object{},
	}
	f.nodes[node["uuid"].(string)] = node
	f.emitLocked(broker.LevelInfo, "baremetal.node.create.success", "NodeCRUDPayload", node)
	resp := clone(node)
	f.mu.Unlock()

	f.reply(w, http.StatusCreated, resp)
}

func (f *Fake) getNode(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	node, ok := f.nodes[r.PathValue("id")]
	if !ok {
		f.mu.Unlock()
		f.notFound(w, "Node", r.PathValue("id"))
		return
	}
	resp := clone(node)
	if next, ok := f.pending[r.PathValue("id")]; ok {
		node["provision_state"] = next
		delete(f.pending, r.PathValue("id"))
	}
	f.mu.Unlock()

	f.reply(w, http.StatusOK, resp)
}

func (f *Fake) patchNode(w http.ResponseWriter, r *http.Request) {
	f.patch(w, r, f.nodes, "Node", "baremetal.node.update.success", "NodePayload")
}

func (f *Fake) deleteNode(w http.ResponseWriter, r *http.Request) {
	f.delete(w, r, f.nodes, "Node", "baremetal.node.delete.success", "NodePayload")
}

func (f *Fake) setPowerState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if !f.decode(w, r, &req) {
		return
	}

	f.withNode(w, r, func(node object) {
		f.emitLocked(broker.LevelInfo, "baremetal.node.power_set.start", "NodeSetPowerStatePayload", node)
		node["power_state"] = req.Target
		f.emitLocked(broker.LevelInfo, "baremetal.node.power_set.end", "NodeSetPowerStatePayload", node)
	})
}

func (f *Fake) setProvisionState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if !f.decode(w, r, &req) {
		return
	}

	transitional, final := "deploying", "active"
	if req.Target == "deleted" {
		transitional, final = "deleting", "available"
	}

	f.withNode(w, r, func(node object) {
		f.emitLocked(broker.LevelInfo, "baremetal.node.provision_set.start", "NodeSetProvisionStatePayload", node)
		node["provision_state"] = transitional
		f.pending[node["uuid"].(string)] = final
		f.emitLocked(broker.LevelInfo, "baremetal.node.provision_set.end", "NodeSetProvisionStatePayload", node)
	})
}

func (f *Fake) setMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !f.decode(w, r, &req) {
		return
	}

	f.withNode(w, r, func(node object) {
		node["maintenance"] = true
		node["maintenance_reason"] = req.Reason
		f.emitLocked(broker.LevelInfo, "baremetal.node.maintenance_set.success", "NodePayload", node)
	})
}

func (f *Fake) unsetMaintenance(w http.ResponseWriter, r *http.Request) {
	f.withNode(w, r, func(node object) {
		node["maintenance"] = false
		node["maintenance_reason"] = nil
		f.emitLocked(broker.LevelInfo, "baremetal.node.maintenance_set.success", "NodePayload", node)
	})
}

func (f *Fake) withNode(w http.ResponseWriter, r *http.Request, apply func(node object)) {
	id := r.PathValue("id")

	f.mu.Lock()
	node, ok := f.nodes[id]
	if !ok {
		f.mu.Unlock()
		f.notFound(w, "Node", id)
		return
	}
	apply(node)
	f.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)
}

// Chassis

func (f *Fake) createChassis(w http.ResponseWriter, r *http.Request) {
	var req object
	if !f.decode(w, r, &req) {
		return
	}

	f.mu.Lock()
	chassis := object{
		"uuid":        uuid.NewString(),
		"description": req["description"],
		"extra":       object{},
	}
	f.chassis[chassis["uuid"].(string)] = chassis
	f.emitLocked(broker.LevelInfo, "baremetal.chassis.create.start", "ChassisCRUDPayload", chassis)
	f.emitLocked(broker.LevelInfo, "baremetal.chassis.create.end", "ChassisCRUDPayload", chassis)
	resp := clone(chassis)
	f.mu.Unlock()

	f.reply(w, http.StatusCreated, resp)
}

func (f *Fake) patchChassis(w http.ResponseWriter, r *http.Request) {
	f.patch(w, r, f.chassis, "Chassis", "baremetal.chassis.update.end", "ChassisCRUDPayload")
}

func (f *Fake) deleteChassis(w http.ResponseWriter, r *http.Request) {
	f.delete(w, r, f.chassis, "Chassis", "baremetal.chassis.delete.end", "ChassisCRUDPayload")
}

// Ports

func (f *Fake) createPort(w http.ResponseWriter, r *http.Request) {
	var req object
	if !f.decode(w, r, &req) {
		return
	}

	f.mu.Lock()
	nodeID, _ := req["node_uuid"].(string)
	if _, ok := f.nodes[nodeID]; !ok {
		f.mu.Unlock()
		f.notFound(w, "Node", nodeID)
		return
	}

	port := object{
		"uuid":        uuid.NewString(),
		"address":     req["address"],
		"node_uuid":   nodeID,
		"pxe_enabled": req["pxe_enabled"],
		"extra":       object{},
	}
	f.ports[port["uuid"].(string)] = port
	f.emitLocked(broker.LevelInfo, "baremetal.port.create.start", "PortCRUDPayload", port)
	f.emitLocked(broker.LevelInfo, "baremetal.port.create.end", "PortCRUDPayload", port)
	resp := clone(port)
	f.mu.Unlock()

	f.reply(w, http.StatusCreated, resp)
}

func (f *Fake) patchPort(w http.ResponseWriter, r *http.Request) {
	f.patch(w, r, f.ports, "Port", "baremetal.port.update.end", "PortCRUDPayload")
}

func (f *Fake) deletePort(w http.ResponseWriter, r *http.Request) {
	f.delete(w, r, f.ports, "Port", "baremetal.port.delete.end", "PortCRUDPayload")
}

// Generic handlers

func (f *Fake) patch(w http.ResponseWriter, r *http.Request, store map[string]object, kind, event, payload string) {
	var ops []struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	if !f.decode(w, r, &ops) {
		return
	}

	id := r.PathValue("id")

	f.mu.Lock()
	obj, ok := store[id]
	if !ok {
		f.mu.Unlock()
		f.notFound(w, kind, id)
		return
	}
	for _, op := range ops {
		applyPatch(obj, op.Op, op.Path, op.Value)
	}
	// Updates are published at debug level by the service.
	f.emitLocked(broker.LevelDebug, event, payload, obj)
	resp := clone(obj)
	f.mu.Unlock()

	f.reply(w, http.StatusOK, resp)
}

func (f *Fake) delete(w http.ResponseWriter, r *http.Request, store map[string]object, kind, event, payload string) {
	id := r.PathValue("id")

	f.mu.Lock()
	obj, ok := store[id]
	if !ok {
		f.mu.Unlock()
		f.notFound(w, kind, id)
		return
	}
	delete(store, id)
	f.emitLocked(broker.LevelInfo, event, payload, obj)
	f.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// emitLocked must be called with f.mu held.
func (f *Fake) emitLocked(level broker.Level, eventType, objectName string, data object) {
	if f.publish == nil || f.dropped.Has(eventType) {
		return
	}

	body, err := notification.Encode(notification.NewVersioned(eventType, objectName, clone(data)))
	require.NoError(f.t, err)
	f.publish(level, body)
}

func (f *Fake) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		f.fail(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (f *Fake) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(f.t, json.NewEncoder(w).Encode(body))
}

func (f *Fake) notFound(w http.ResponseWriter, kind, id string) {
	f.fail(w, http.StatusNotFound, fmt.Sprintf("%s %s could not be found.", kind, id))
}

func (f *Fake) fail(w http.ResponseWriter, status int, msg string) {
	f.reply(w, status, object{
		"error_message": object{"faultstring": msg, "debuginfo": nil},
	})
}
