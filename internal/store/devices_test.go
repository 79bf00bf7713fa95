package store_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/carewatch/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func intPtr(v int) *int { return &v }

var _ = Describe("DeviceStore", func() {
	var (
		path    string
		clock   time.Time
		devices *store.DeviceStore
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "devices.json")
		clock = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

		var err error
		devices, err = store.NewDeviceStore(&store.DeviceStoreConfig{
			Logger: testLogger(),
			Path:   path,
			Now:    func() time.Time { return clock },
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewDeviceStore", func() {
		It("should reject a nil config", func() {
			_, err := store.NewDeviceStore(nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a missing logger", func() {
			_, err := store.NewDeviceStore(&store.DeviceStoreConfig{Path: path})
			Expect(err).To(MatchError(ContainSubstring("logger")))
		})

		It("should reject an empty path", func() {
			_, err := store.NewDeviceStore(&store.DeviceStoreConfig{Logger: testLogger()})
			Expect(err).To(MatchError(ContainSubstring("path")))
		})

		It("should start empty when the backing file is missing", func() {
			Expect(devices.Count()).To(BeZero())
		})

		It("should start empty when the backing file is corrupt", func() {
			Expect(os.WriteFile(path, []byte("{not json"), 0o644)).To(Succeed())

			s, err := store.NewDeviceStore(&store.DeviceStoreConfig{
				Logger: testLogger(),
				Path:   path,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Count()).To(BeZero())
		})

		It("should load previously persisted devices", func() {
			_, err := devices.Register("dev-1", "Band A", "Carmen", "")
			Expect(err).NotTo(HaveOccurred())

			reopened, err := store.NewDeviceStore(&store.DeviceStoreConfig{
				Logger: testLogger(),
				Path:   path,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(reopened.Count()).To(Equal(1))

			dev, err := reopened.Get("dev-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(dev.DeviceName).To(Equal("Band A"))
		})
	})

	Describe("Register", func() {
		It("should create a record with zeroed health fields and offline status", func() {
			dev, err := devices.Register("dev-1", "Band A", "Carmen", "Abuela Carmen")
			Expect(err).NotTo(HaveOccurred())

			Expect(dev.ID).NotTo(BeEmpty())
			Expect(dev.DeviceID).To(Equal("dev-1"))
			Expect(dev.DeviceName).To(Equal("Band A"))
			Expect(dev.OwnerName).To(Equal("Carmen"))
			Expect(dev.OwnerDisplayName).To(Equal("Abuela Carmen"))
			Expect(dev.RegisteredAt).To(Equal(clock))
			Expect(dev.LastUpdate).To(BeNil())
			Expect(dev.HealthData).To(BeZero())
			Expect(dev.IsOnline).To(BeFalse())
		})

		It("should fail validation when deviceId is missing", func() {
			_, err := devices.Register("", "Band A", "", "")
			Expect(err).To(MatchError(store.ErrValidation))
		})

		It("should fail validation when deviceName is missing", func() {
			_, err := devices.Register("dev-1", "", "", "")
			Expect(err).To(MatchError(store.ErrValidation))
		})

		It("should conflict on a duplicate deviceId and retain the first record", func() {
			first, err := devices.Register("dev-1", "Band A", "", "")
			Expect(err).NotTo(HaveOccurred())

			_, err = devices.Register("dev-1", "Band B", "", "")
			Expect(err).To(MatchError(store.ErrConflict))

			dev, err := devices.Get("dev-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(dev.ID).To(Equal(first.ID))
			Expect(dev.DeviceName).To(Equal("Band A"))
			Expect(devices.Count()).To(Equal(1))
		})
	})

	Describe("UpdateTelemetry", func() {
		BeforeEach(func() {
			_, err := devices.Register("dev-1", "Band A", "", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should fail with not found for an unknown device", func() {
			_, err := devices.UpdateTelemetry("ghost", store.TelemetryUpdate{})
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("should fail validation without a deviceId", func() {
			_, err := devices.UpdateTelemetry("", store.TelemetryUpdate{})
			Expect(err).To(MatchError(store.ErrValidation))
		})

		It("should stamp lastUpdate and mark the device online", func() {
			dev, err := devices.UpdateTelemetry("dev-1", store.TelemetryUpdate{HeartRate: intPtr(72)})
			Expect(err).NotTo(HaveOccurred())

			Expect(dev.LastUpdate).NotTo(BeNil())
			Expect(*dev.LastUpdate).To(Equal(clock))
			Expect(dev.IsOnline).To(BeTrue())
			Expect(dev.HealthData.HeartRate).To(Equal(72))
		})

		It("should only overwrite fields that are provided", func() {
			_, err := devices.UpdateTelemetry("dev-1", store.TelemetryUpdate{
				HeartRate: intPtr(72),
				Battery:   intPtr(90),
				Location:  &store.Location{Latitude: 10, Longitude: 20, Address: "Calle Mayor 1"},
			})
			Expect(err).NotTo(HaveOccurred())

			dev, err := devices.UpdateTelemetry("dev-1", store.TelemetryUpdate{Steps: intPtr(4200)})
			Expect(err).NotTo(HaveOccurred())

			Expect(dev.HealthData.Steps).To(Equal(4200))
			Expect(dev.HealthData.HeartRate).To(Equal(72))
			Expect(dev.HealthData.Battery).To(Equal(90))
			Expect(dev.HealthData.Location.Latitude).To(Equal(10.0))
			Expect(dev.HealthData.Location.Address).To(Equal("Calle Mayor 1"))
		})

		It("should replace location as a whole when provided", func() {
			_, err := devices.UpdateTelemetry("dev-1", store.TelemetryUpdate{
				Location: &store.Location{Latitude: 10, Longitude: 20, Address: "Calle Mayor 1"},
			})
			Expect(err).NotTo(HaveOccurred())

			dev, err := devices.UpdateTelemetry("dev-1", store.TelemetryUpdate{
				Location: &store.Location{Latitude: 11},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(dev.HealthData.Location.Latitude).To(Equal(11.0))
			Expect(dev.HealthData.Location.Longitude).To(BeZero())
			Expect(dev.HealthData.Location.Address).To(BeEmpty())
		})
	})

	Describe("presence recomputation", func() {
		BeforeEach(func() {
			_, err := devices.Register("dev-1", "Band A", "", "")
			Expect(err).NotTo(HaveOccurred())
			_, err = devices.UpdateTelemetry("dev-1", store.TelemetryUpdate{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should report online 90 seconds after the last update", func() {
			clock = clock.Add(90 * time.Second)

			dev, err := devices.Get("dev-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(dev.IsOnline).To(BeTrue())
		})

		It("should report offline 121 seconds after the last update", func() {
			clock = clock.Add(121 * time.Second)

			dev, err := devices.Get("dev-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(dev.IsOnline).To(BeFalse())
		})

		It("should persist recomputed presence as a side effect of List", func() {
			clock = clock.Add(10 * time.Minute)

			listed, err := devices.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(1))
			Expect(listed[0].IsOnline).To(BeFalse())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())

			var doc struct {
				Devices []store.Device `json:"devices"`
			}
			Expect(json.Unmarshal(data, &doc)).To(Succeed())
			Expect(doc.Devices).To(HaveLen(1))
			Expect(doc.Devices[0].IsOnline).To(BeFalse())
		})
	})

	Describe("Rename", func() {
		BeforeEach(func() {
			_, err := devices.Register("dev-1", "Band A", "Carmen", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should fail with not found for an unknown device", func() {
			_, err := devices.Rename("ghost", "X", "Y")
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("should apply only non-empty fields", func() {
			dev, err := devices.Rename("dev-1", "Band B", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(dev.DeviceName).To(Equal("Band B"))
			Expect(dev.OwnerName).To(Equal("Carmen"))
		})
	})

	Describe("Delete", func() {
		It("should fail with not found for an unknown device", func() {
			Expect(devices.Delete("ghost")).To(MatchError(store.ErrNotFound))
		})

		It("should remove the record", func() {
			_, err := devices.Register("dev-1", "Band A", "", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(devices.Delete("dev-1")).To(Succeed())
			Expect(devices.Count()).To(BeZero())

			_, err = devices.Get("dev-1")
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})
})
