package main

import (
	"os"

	"flowchat-gateway/internal/api"
	"flowchat-gateway/internal/config"
	"flowchat-gateway/internal/contacts"
	"flowchat-gateway/internal/database"
	"flowchat-gateway/internal/gateway"
	"flowchat-gateway/internal/ledger"
	"flowchat-gateway/internal/provider"
	"flowchat-gateway/internal/webhook"
	"flowchat-gateway/internal/ws"
	"flowchat-gateway/pkg/logger"
	"flowchat-gateway/pkg/metrics"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	db, err := database.Init(cfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	// Provider selection happens once here; the facade never re-reads it.
	var transport provider.Transport
	if cfg.Provider == config.ProviderTwilio {
		transport = provider.NewTwilioTransport(
			cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber,
			cfg.ProviderTimeout, log)
	} else {
		transport = provider.NewDirectAPITransport(
			cfg.WhatsAppAPIURL, cfg.WhatsAppToken, cfg.PhoneNumberID,
			cfg.ProviderTimeout, log)
	}
	log.Info("whatsapp transport configured", "provider", transport.Name())

	m := metrics.New()
	hub := ws.NewHub(log)
	go hub.Run()

	resolver := contacts.NewResolver(db)
	ldg := ledger.New(db, log)
	validator := webhook.NewSignatureValidator(cfg.TwilioAuthToken)

	facade := gateway.New(transport, resolver, ldg, validator, m, log, gateway.Options{
		Notifier:      hub,
		Timeout:       cfg.ProviderTimeout,
		SkipSignature: cfg.SkipSignature,
	})

	webhookHandler := api.NewWebhookHandler(cfg, facade)
	messageHandler := api.NewMessageHandler(facade, ldg)
	contactHandler := api.NewContactHandler(db)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Webhook Routes
	r.GET("/webhook", webhookHandler.Verify)
	r.POST("/webhook", webhookHandler.Receive)

	// Dashboard API Routes
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/messages", messageHandler.GetConversation)
		apiGroup.POST("/whatsapp/send", messageHandler.SendMessage)
		apiGroup.POST("/whatsapp/send-template", messageHandler.SendTemplate)

		apiGroup.GET("/contacts", contactHandler.GetContacts)
		apiGroup.GET("/contacts/:id", contactHandler.GetContact)
		apiGroup.PUT("/contacts/:id", contactHandler.UpdateContact)
	}

	// Dashboard live feed + metrics
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	log.Info("server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
