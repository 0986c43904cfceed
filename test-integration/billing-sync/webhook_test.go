package integration

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/billing-sync-server/test-integration/billing-sync/helpers"
)

const testWebhookSecret = "whsec_integration"

var _ = Describe("Billing Webhook Ingestion", Label("webhook"), func() {
	var (
		tempDir      string
		provider     *helpers.FakeBillingProvider
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("billing-webhook-test-")
		dataDir := filepath.Join(tempDir, "data")
		Expect(os.MkdirAll(dataDir, 0750)).To(Succeed())

		provider = helpers.NewFakeBillingProvider(testAPIKey)

		configFile := helpers.WriteConfigYAML(tempDir,
			helpers.WriteSecret(tempDir, "api-key", testAPIKey),
			helpers.ConfigOptions{
				StorageType:      "file",
				DataDir:          dataDir,
				UpstreamEndpoint: provider.URL(),
				WebhookSecret:    testWebhookSecret,
			})

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		provider.Close()
		cleanupTempDir(tempDir)
	})

	Context("Signed deliveries", func() {
		It("should sync the customer named by a relevant event", func() {
			provider.SetSubscription(helpers.NewSubscription("cus_w1", "sub_w1", "price_pro"))

			resp, err := serverHelper.PostWebhook(
				helpers.NewEvent("evt_1", "customer.subscription.updated", "cus_w1"), testWebhookSecret)
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			var body map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("entityId", "cus_w1"))
			Expect(body).To(HaveKeyWithValue("eventId", "evt_1"))

			serverHelper.WaitForSynced("cus_w1", 15*time.Second)
			Expect(provider.Requests("cus_w1")).To(Equal(1))
		})

		It("should acknowledge irrelevant events without enqueuing", func() {
			resp, err := serverHelper.PostWebhook(
				helpers.NewEvent("evt_2", "product.updated", "cus_w2"), testWebhookSecret)
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			work, err := serverHelper.GetPendingWork("cus_w2")
			Expect(err).NotTo(HaveOccurred())
			Expect(work).To(BeNil())
		})
	})

	Context("Unsigned deliveries", func() {
		It("should reject events without a valid signature", func() {
			event := helpers.NewEvent("evt_3", "invoice.paid", "cus_w3")

			resp, err := serverHelper.PostWebhook(event, "")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			resp, err = serverHelper.PostWebhook(event, "whsec_wrong")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			work, err := serverHelper.GetPendingWork("cus_w3")
			Expect(err).NotTo(HaveOccurred())
			Expect(work).To(BeNil())
		})

		It("should still accept direct notifications", func() {
			resp, err := serverHelper.Notify("cus_w4")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		})
	})
})
