/*
Copyright 2024 SellerDesk Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/sellerdesk/sellerdesk/api/model"
	"github.com/sellerdesk/sellerdesk/internal/apierror"
)

// TriggerSync queues a sync pass. With a seller id only that seller is
// queued; without one, every configured seller. A forced sync runs inline,
// re-reads the full channel history regardless of watermarks, and returns
// the per-channel results.
func (a Api) TriggerSync(c *gin.Context) {
	var req model2.TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateTriggerSyncRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if req.Force {
		results, err := a.sellerdesk.SyncSeller(c.Request.Context(), req.SellerID, true)
		if err != nil {
			c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, results)
		return
	}

	if req.SellerID == "" {
		if err := a.sellerdesk.SyncAll(c.Request.Context()); err != nil {
			c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "sync queued for all sellers"})
		return
	}

	if err := a.sellerdesk.EnqueueSync(c.Request.Context(), req.SellerID); err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "sync queued", "seller_id": req.SellerID})
}

// SyncStatus reports the per-channel watermarks for one seller.
func (a Api) SyncStatus(c *gin.Context) {
	sellerID := c.Query("seller_id")
	if sellerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seller_id is required"})
		return
	}

	resp, err := a.sellerdesk.SyncStatus(c.Request.Context(), sellerID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Metrics returns the interaction inventory and sync health for one seller.
func (a Api) Metrics(c *gin.Context) {
	sellerID := c.Query("seller_id")
	if sellerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seller_id is required"})
		return
	}

	resp, err := a.sellerdesk.GetMetrics(c.Request.Context(), sellerID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
