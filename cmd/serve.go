package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"arforge/internal/apihandlers"
)

var (
	serveAddr string
	servePort string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts an HTTP server exposing the product catalog and the generation
pipeline (trigger, task status, event stream). Generated assets are served
from the configured static root.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		router := gin.Default() // includes logger and recovery middleware

		apiHandler := apihandlers.NewAPIHandler(appInstance)

		v1 := router.Group("/api/v1")
		{
			productGroup := v1.Group("/products")
			{
				productGroup.POST("", apiHandler.CreateProductHandler)
				productGroup.GET("", apiHandler.ListProductsHandler)
				productGroup.GET("/:id", apiHandler.GetProductHandler)
				productGroup.POST("/:id/generate", apiHandler.GenerateHandler)
				productGroup.GET("/:id/events", apiHandler.ProductEventsHandler)
			}

			taskGroup := v1.Group("/tasks")
			{
				taskGroup.GET("", apiHandler.ListTasksHandler)
				taskGroup.GET("/:task_id", apiHandler.GetTaskHandler)
			}
		}

		// Downloaded model/preview files, web-relative under /3d.
		router.Static("/3d", appInstance.Config.Generation.StaticRoot+"/3d")

		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Flags override config; config carries the defaults.
		addr := appInstance.Config.Serve.Address
		port := appInstance.Config.Serve.Port
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		listenAddr := fmt.Sprintf("%s:%s", addr, port)
		log.Printf("Starting API server on http://%s", listenAddr)

		if err := router.Run(listenAddr); err != nil {
			log.Printf("ERROR: Failed to run API server: %v", err)
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1", "Listen address")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Listen port")
}
