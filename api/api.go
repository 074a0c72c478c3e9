package api

import (
	"fmt"
	"net/http"

	"github.com/typesense/typesense-go/typesense/api"

	"github.com/sellerdesk/sellerdesk/config"

	"github.com/sellerdesk/sellerdesk/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sellerdesk/sellerdesk"
)

type Api struct {
	sellerdesk *sellerdesk.Sellerdesk
	router     *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/interactions", a.GetAllInteractions)
	router.GET("/interactions/:id", a.GetInteraction)
	router.GET("/interactions/:id/thread", a.GetThread)
	router.GET("/interactions/:id/links", a.GetInteractionLinks)
	router.GET("/interactions/:id/events", a.GetInteractionEvents)
	router.PUT("/interactions/:id/status", a.UpdateInteractionStatus)

	router.POST("/interactions/:id/draft", a.SaveDraft)
	router.POST("/interactions/:id/draft/validate", a.ValidateDraft)
	router.POST("/interactions/:id/reply", a.SendReply)

	router.POST("/sync", a.TriggerSync)
	router.GET("/sync/status", a.SyncStatus)

	router.GET("/metrics", a.Metrics)

	router.POST("/search/:collection", a.Search)
	router.POST("/multi-search", a.MultiSearch)
	return a.router
}

func NewAPI(s *sellerdesk.Sellerdesk) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	r.POST("/webhook", func(c *gin.Context) {
		var payload map[string]interface{}
		err := c.Bind(&payload)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(payload)
		c.JSON(200, "webhook received")
	})

	return &Api{sellerdesk: s, router: r}
}

func (a Api) Search(c *gin.Context) {
	collection, passed := c.Params.Get("collection")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection is required. pass id in the route /:collection"})
		return
	}

	var query api.SearchCollectionParams
	err := c.BindJSON(&query)
	if err != nil {
		return
	}

	resp, err := a.sellerdesk.Search(collection, &query)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) MultiSearch(c *gin.Context) {
	var searches api.MultiSearchSearchesParameter
	if err := c.BindJSON(&searches); err != nil {
		return
	}

	resp, err := a.sellerdesk.MultiSearch(&searches)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
