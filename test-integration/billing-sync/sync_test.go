package integration

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/billing-sync-server/internal/sync/writer"
	"github.com/stacklok/billing-sync-server/test-integration/billing-sync/helpers"
)

const testAPIKey = "sk_test_integration"

var _ = Describe("Notify to Sync", Label("sync"), func() {
	var (
		tempDir      string
		dataDir      string
		provider     *helpers.FakeBillingProvider
		serverHelper *helpers.ServerTestHelper
	)

	startServer := func(storageType string) {
		configFile := helpers.WriteConfigYAML(tempDir,
			helpers.WriteSecret(tempDir, "api-key", testAPIKey),
			helpers.ConfigOptions{
				StorageType:      storageType,
				DataDir:          dataDir,
				UpstreamEndpoint: provider.URL(),
			})

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	}

	BeforeEach(func() {
		tempDir = createTempDir("billing-sync-test-")
		dataDir = filepath.Join(tempDir, "data")
		Expect(os.MkdirAll(dataDir, 0750)).To(Succeed())

		provider = helpers.NewFakeBillingProvider(testAPIKey)
	})

	AfterEach(func() {
		if serverHelper != nil {
			Expect(serverHelper.StopServer()).To(Succeed())
			serverHelper = nil
		}
		provider.Close()
		cleanupTempDir(tempDir)
	})

	DescribeTable("coalescing notifications into one sync",
		func(storageType string) {
			provider.SetSubscription(helpers.NewSubscription("cus_1", "sub_1", "price_pro"))
			startServer(storageType)

			By("notifying the same customer several times before the wake")
			for range 5 {
				resp, err := serverHelper.Notify("cus_1")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
				_ = resp.Body.Close()
			}

			work, err := serverHelper.GetPendingWork("cus_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(work).NotTo(BeNil())
			Expect(work.Count).To(BeNumerically(">=", 1))

			By("waiting for the batch pass")
			serverHelper.WaitForSynced("cus_1", 15*time.Second)
			Expect(provider.Requests("cus_1")).To(BeNumerically("<=", 2), "notifications coalesce")
		},
		Entry("with file storage", "file"),
		Entry("with sqlite storage", "sqlite"),
	)

	It("should cache the latest subscription in file storage", func() {
		provider.SetSubscription(helpers.NewSubscription("cus_2", "sub_2", "price_team"))
		startServer("file")

		resp, err := serverHelper.Notify("cus_2")
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()

		serverHelper.WaitForSynced("cus_2", 15*time.Second)

		w, err := writer.NewFileStateWriter(dataDir)
		Expect(err).NotTo(HaveOccurred())
		state, err := w.Get(context.Background(), "cus_2")
		Expect(err).NotTo(HaveOccurred())
		Expect(state.SubscriptionID).To(Equal("sub_2"))
		Expect(state.Status).To(Equal("active"))
		Expect(state.PriceID).To(Equal("price_team"))
		Expect(state.CurrentPeriodStart).NotTo(BeNil())
	})

	It("should clear the cached state of a customer without subscriptions", func() {
		startServer("file")

		resp, err := serverHelper.Notify("cus_gone")
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()

		serverHelper.WaitForSynced("cus_gone", 15*time.Second)

		w, err := writer.NewFileStateWriter(dataDir)
		Expect(err).NotTo(HaveOccurred())
		state, err := w.Get(context.Background(), "cus_gone")
		Expect(err).NotTo(HaveOccurred())
		Expect(state.IsCleared()).To(BeTrue())
	})

	It("should keep failed customers pending and retry them on its own", func() {
		provider.SetSubscription(helpers.NewSubscription("cus_3", "sub_3", "price_pro"))
		provider.FailWith("cus_3", http.StatusServiceUnavailable)
		startServer("sqlite")

		resp, err := serverHelper.Notify("cus_3")
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()

		By("waiting for the failed attempt to be recorded")
		Eventually(func() (int64, error) {
			work, err := serverHelper.GetPendingWork("cus_3")
			if err != nil || work == nil {
				return 0, err
			}
			return work.Attempts, nil
		}, 15*time.Second, 200*time.Millisecond).Should(BeNumerically(">=", 1))

		work, err := serverHelper.GetPendingWork("cus_3")
		Expect(err).NotTo(HaveOccurred())
		Expect(work).NotTo(BeNil())
		Expect(work.LastError).NotTo(BeEmpty())

		By("recovering the provider without notifying again")
		provider.FailWith("cus_3", 0)

		serverHelper.WaitForSynced("cus_3", 15*time.Second)
	})

	It("should drain a backlog larger than one batch", func() {
		configFile := helpers.WriteConfigYAML(tempDir,
			helpers.WriteSecret(tempDir, "api-key", testAPIKey),
			helpers.ConfigOptions{
				StorageType:      "sqlite",
				DataDir:          dataDir,
				UpstreamEndpoint: provider.URL(),
				BatchSize:        2,
			})

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)

		customers := []string{"cus_a", "cus_b", "cus_c", "cus_d", "cus_e"}
		for _, c := range customers {
			resp, err := serverHelper.Notify(c)
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
		}

		for _, c := range customers {
			serverHelper.WaitForSynced(c, 30*time.Second)
		}
	})
})
