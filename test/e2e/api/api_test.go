package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/carewatch/internal/hub"
)

type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func call(method, path string, body any) (int, map[string]any) {
	GinkgoHelper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
	}

	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(payload))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
	return resp.StatusCode, decoded
}

func dialWS() *websocket.Conn {
	GinkgoHelper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = conn.Close() })
	return conn
}

func readWS(conn *websocket.Conn) wireMessage {
	GinkgoHelper()
	Expect(conn.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
	var msg wireMessage
	Expect(conn.ReadJSON(&msg)).To(Succeed())
	return msg
}

var _ = Describe("Caregiver flow", Ordered, func() {
	var emergencyID string

	It("should report a healthy service", func() {
		status, resp := call(http.MethodGet, "/api/test", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(resp["status"]).To(Equal("ok"))
	})

	It("should register a wearable", func() {
		status, resp := call(http.MethodPost, "/api/devices/register", map[string]any{
			"deviceId":         "band-001",
			"deviceName":       "Band 001",
			"ownerName":        "Dolores",
			"ownerDisplayName": "Abuela Dolores",
		})
		Expect(status).To(Equal(http.StatusOK))
		Expect(resp["success"]).To(BeTrue())
	})

	It("should accept telemetry and mark the wearable online", func() {
		status, _ := call(http.MethodPost, "/api/health", map[string]any{
			"deviceId":  "band-001",
			"heartRate": 68,
			"steps":     1200,
			"battery":   91,
			"location": map[string]any{
				"latitude":  40.4168,
				"longitude": -3.7038,
				"address":   "Calle Mayor 1, Madrid",
			},
		})
		Expect(status).To(Equal(http.StatusOK))

		status, resp := call(http.MethodGet, "/api/devices/band-001", nil)
		Expect(status).To(Equal(http.StatusOK))

		device := resp["device"].(map[string]any)
		Expect(device["isOnline"]).To(BeTrue())
		Expect(device["healthData"].(map[string]any)["heartRate"]).To(BeEquivalentTo(68))
	})

	It("should fan an SOS out to a connected caregiver", func() {
		conn := dialWS()
		Expect(readWS(conn).Type).To(Equal(hub.EventActiveEmergencies))

		status, resp := call(http.MethodPost, "/api/sos", map[string]any{
			"deviceId": "band-001",
			"location": map[string]any{
				"latitude":  40.4170,
				"longitude": -3.7040,
				"address":   "Calle Mayor 1, Madrid",
			},
		})
		Expect(status).To(Equal(http.StatusOK))

		emergency := resp["emergency"].(map[string]any)
		emergencyID = emergency["id"].(string)
		Expect(emergency["ownerDisplayName"]).To(Equal("Abuela Dolores"))
		Expect(emergency["status"]).To(Equal("active"))

		msg := readWS(conn)
		Expect(msg.Type).To(Equal(hub.EventNewEmergency))
	})

	It("should include the active emergency in a late subscriber's snapshot", func() {
		conn := dialWS()

		msg := readWS(conn)
		Expect(msg.Type).To(Equal(hub.EventActiveEmergencies))

		var list []map[string]any
		Expect(json.Unmarshal(msg.Data, &list)).To(Succeed())
		Expect(list).To(HaveLen(1))
		Expect(list[0]["id"]).To(Equal(emergencyID))
	})

	It("should resolve the emergency and broadcast the resolution", func() {
		conn := dialWS()
		Expect(readWS(conn).Type).To(Equal(hub.EventActiveEmergencies))

		status, _ := call(http.MethodPost, fmt.Sprintf("/api/emergencies/%s/resolve", emergencyID), nil)
		Expect(status).To(Equal(http.StatusOK))

		msg := readWS(conn)
		Expect(msg.Type).To(Equal(hub.EventEmergencyResolved))

		var data map[string]string
		Expect(json.Unmarshal(msg.Data, &data)).To(Succeed())
		Expect(data["id"]).To(Equal(emergencyID))
	})

	It("should keep the resolved emergency listed", func() {
		status, resp := call(http.MethodGet, "/api/emergencies", nil)
		Expect(status).To(Equal(http.StatusOK))

		emergencies := resp["emergencies"].([]any)
		Expect(emergencies).To(HaveLen(1))
		Expect(emergencies[0].(map[string]any)["status"]).To(Equal("resolved"))
	})

	Describe("after a restart", Ordered, func() {
		BeforeAll(func() {
			stopServer()
			startServer()
		})

		It("should still know the registered wearable", func() {
			status, resp := call(http.MethodGet, "/api/devices/band-001", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp["device"].(map[string]any)["ownerName"]).To(Equal("Dolores"))
		})

		It("should start with an empty emergency feed", func() {
			status, resp := call(http.MethodGet, "/api/emergencies", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp["emergencies"]).To(BeEmpty())
		})

		It("should refuse to resolve an emergency from the previous run", func() {
			status, _ := call(http.MethodPost, fmt.Sprintf("/api/emergencies/%s/resolve", emergencyID), nil)
			Expect(status).To(Equal(http.StatusNotFound))
		})
	})
})
