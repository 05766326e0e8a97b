package httpapi

import (
	"errors"
	"net/http"
	"time"

	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/directory"
	"callcenter-platform/internal/rbac"
	"callcenter-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

/* ===================== ME ===================== */

func (h Handlers) Me(c *gin.Context) {
	pid, err := auth.ProfileID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "profile required"})
		return
	}
	p, err := h.Directory.GetProfile(c.Request.Context(), pid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

/* ===================== CENTERS ===================== */

func (h Handlers) ListCenters(c *gin.Context) {
	ctx := c.Request.Context()
	role, _ := auth.Role(ctx)
	if !rbac.IsAdmin(role) {
		own := auth.CenterID(ctx)
		if own == "" {
			c.JSON(http.StatusOK, gin.H{"centers": []directory.Center{}})
			return
		}
		center, err := h.Directory.GetCenter(ctx, own)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"centers": []directory.Center{center}})
		return
	}

	out, err := h.Directory.ListCenters(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"centers": out})
}

func (h Handlers) GetCenter(c *gin.Context) {
	id := c.Param("id")
	if !rbac.CanAccessCenter(c.Request.Context(), id) {
		forbidden(c)
		return
	}
	center, err := h.Directory.GetCenter(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, center)
}

func (h Handlers) CreateCenter(c *gin.Context) {
	var in directory.CenterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	center, err := h.Directory.CreateCenter(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.staffAction(c, center.ID, "center created", gin.H{"name": center.Name})
	c.JSON(http.StatusCreated, center)
}

func (h Handlers) UpdateCenter(c *gin.Context) {
	var in directory.CenterPatch
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	center, err := h.Directory.UpdateCenter(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.staffAction(c, center.ID, "center updated", nil)
	c.JSON(http.StatusOK, center)
}

func (h Handlers) DeleteCenter(c *gin.Context) {
	id := c.Param("id")
	if err := h.Directory.DeleteCenter(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.staffAction(c, id, "center deleted", nil)
	c.Status(http.StatusNoContent)
}

func (h Handlers) CenterSummary(c *gin.Context) {
	id := c.Param("id")
	if !rbac.CanAccessCenter(c.Request.Context(), id) {
		forbidden(c)
		return
	}

	var rng reporting.TimeRange
	for key, dst := range map[string]*time.Time{"from": &rng.From, "to": &rng.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be RFC3339"})
			return
		}
		*dst = t
	}

	out, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{CenterID: id, Range: rng})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

/* ===================== USERS ===================== */

// loadUser fetches a user and checks the caller may act on its center.
// It writes the response and returns false when the request must stop.
func (h Handlers) loadUser(c *gin.Context) (directory.User, bool) {
	u, err := h.Directory.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return directory.User{}, false
	}
	if !rbac.CanAccessCenter(c.Request.Context(), u.CenterID) {
		// Hide users of other centers.
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return directory.User{}, false
	}
	return u, true
}

func (h Handlers) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	f := directory.UserFilter{
		CenterID: c.Query("center_id"),
		Search:   c.Query("q"),
		Limit:    queryInt(c, "limit"),
		Offset:   queryInt(c, "offset"),
	}
	role, _ := auth.Role(ctx)
	if !rbac.IsAdmin(role) {
		own := auth.CenterID(ctx)
		if own == "" || (f.CenterID != "" && f.CenterID != own) {
			forbidden(c)
			return
		}
		f.CenterID = own
	}

	out, err := h.Directory.ListUsers(ctx, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

func (h Handlers) GetUser(c *gin.Context) {
	u, ok := h.loadUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) CreateUser(c *gin.Context) {
	ctx := c.Request.Context()
	var in directory.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	role, _ := auth.Role(ctx)
	if !rbac.IsAdmin(role) {
		if in.CenterID == "" {
			in.CenterID = auth.CenterID(ctx)
		}
		if !rbac.CanAccessCenter(ctx, in.CenterID) {
			forbidden(c)
			return
		}
	}

	u, err := h.Directory.CreateUser(ctx, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.staffAction(c, u.CenterID, "user created", gin.H{"user_id": u.ID})
	c.JSON(http.StatusCreated, u)
}

func (h Handlers) UpdateUser(c *gin.Context) {
	ctx := c.Request.Context()
	u, ok := h.loadUser(c)
	if !ok {
		return
	}
	var in directory.UserPatch
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	if in.CenterID != nil && !rbac.CanAccessCenter(ctx, *in.CenterID) {
		forbidden(c)
		return
	}

	u, err := h.Directory.UpdateUser(ctx, u.ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.staffAction(c, u.CenterID, "user updated", gin.H{"user_id": u.ID})
	c.JSON(http.StatusOK, u)
}

func (h Handlers) RegenerateToken(c *gin.Context) {
	u, ok := h.loadUser(c)
	if !ok {
		return
	}
	u, err := h.Directory.RegenerateToken(c.Request.Context(), u.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.staffAction(c, u.CenterID, "login token regenerated", gin.H{"user_id": u.ID})
	c.JSON(http.StatusOK, u)
}

func (h Handlers) DeleteUser(c *gin.Context) {
	u, ok := h.loadUser(c)
	if !ok {
		return
	}
	if err := h.Directory.DeleteUser(c.Request.Context(), u.ID); err != nil {
		h.fail(c, err)
		return
	}
	h.staffAction(c, u.CenterID, "user deleted", gin.H{"user_id": u.ID})
	c.Status(http.StatusNoContent)
}

// UserCalls lists a user's call history together with today's usage.
func (h Handlers) UserCalls(c *gin.Context) {
	ctx := c.Request.Context()
	u, ok := h.loadUser(c)
	if !ok {
		return
	}

	list, err := h.Calls.ListByUser(ctx, u.ID, queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var tz string
	if u.CenterID != "" {
		center, err := h.Directory.GetCenter(ctx, u.CenterID)
		if err != nil && !errors.Is(err, directory.ErrNotFound) {
			h.fail(c, err)
			return
		}
		tz = center.Timezone
	}
	act, err := h.Reporting.UserActivity(ctx, u.ID, tz)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": list, "activity": act})
}

/* ===================== CALLS ===================== */

// GetCall returns a call with its transcript when one exists.
func (h Handlers) GetCall(c *gin.Context) {
	ctx := c.Request.Context()
	call, err := h.Calls.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !rbac.CanAccessCenter(ctx, call.CenterID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	resp := gin.H{"call": call}
	tr, err := h.Calls.Transcript(ctx, call.ID)
	switch {
	case err == nil:
		resp["transcript"] = tr
	case errors.Is(err, calls.ErrNotFound):
	default:
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

/* ===================== PROFILES ===================== */

func (h Handlers) ListProfiles(c *gin.Context) {
	out, err := h.Directory.ListProfiles(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": out})
}

func (h Handlers) CreateProfile(c *gin.Context) {
	var in directory.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	p, err := h.Directory.CreateProfile(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.staffAction(c, p.CenterID, "profile created", gin.H{"profile_id": p.ID, "role": p.Role})
	c.JSON(http.StatusCreated, p)
}

func (h Handlers) UpdateProfile(c *gin.Context) {
	var in directory.ProfilePatch
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	p, err := h.Directory.UpdateProfile(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.staffAction(c, p.CenterID, "profile updated", gin.H{"profile_id": p.ID, "role": p.Role})
	c.JSON(http.StatusOK, p)
}
