package placetest

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/danmuck/placectl/internal/microversion"
)

func (s *Server) registerRoutes() {
	r := s.engine

	r.GET("/", s.home)

	r.GET("/resource_providers", s.listProviders)
	r.POST("/resource_providers", s.createProvider)
	r.GET("/resource_providers/:uuid", s.showProvider)
	r.PUT("/resource_providers/:uuid", s.updateProvider)
	r.DELETE("/resource_providers/:uuid", s.deleteProvider)

	r.GET("/resource_providers/:uuid/inventories", s.listInventories)
	r.PUT("/resource_providers/:uuid/inventories", s.replaceInventories)
	r.DELETE("/resource_providers/:uuid/inventories", s.deleteInventories)
	r.GET("/resource_providers/:uuid/inventories/:class", s.showInventory)
	r.PUT("/resource_providers/:uuid/inventories/:class", s.replaceInventory)
	r.DELETE("/resource_providers/:uuid/inventories/:class", s.deleteInventory)

	r.GET("/resource_providers/:uuid/aggregates", s.listAggregates)
	r.PUT("/resource_providers/:uuid/aggregates", s.replaceAggregates)

	r.GET("/resource_providers/:uuid/traits", s.listProviderTraits)
	r.PUT("/resource_providers/:uuid/traits", s.replaceProviderTraits)
	r.DELETE("/resource_providers/:uuid/traits", s.deleteProviderTraits)

	r.GET("/resource_providers/:uuid/usages", s.showUsages)
	r.GET("/resource_providers/:uuid/allocations", s.providerAllocations)

	r.GET("/traits", s.listTraits)
	r.GET("/traits/:name", s.showTrait)
	r.PUT("/traits/:name", s.putTrait)
	r.DELETE("/traits/:name", s.deleteTrait)

	r.GET("/resource_classes", s.listClasses)
	r.POST("/resource_classes", s.createClass)
	r.GET("/resource_classes/:name", s.showClass)
	r.PUT("/resource_classes/:name", s.putClass)
	r.DELETE("/resource_classes/:name", s.deleteClass)

	r.GET("/allocations/:uuid", s.showAllocations)
	r.PUT("/allocations/:uuid", s.replaceAllocations)
	r.DELETE("/allocations/:uuid", s.deleteAllocations)

	r.GET("/allocation_candidates", s.listCandidates)
}

func (s *Server) home(c *gin.Context) {
	s.mu.Lock()
	max := s.maxVersion
	s.mu.Unlock()
	if max == "" {
		max = microversion.Supported[len(microversion.Supported)-1]
	}
	c.JSON(http.StatusOK, gin.H{"versions": []gin.H{{
		"id":          "v1.0",
		"status":      "CURRENT",
		"min_version": "1.0",
		"max_version": max,
	}}})
}

func (s *Server) listProviders(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members map[string]bool
	if memberOf := c.Query("member_of"); memberOf != "" {
		members = map[string]bool{}
		for _, agg := range strings.Split(strings.TrimPrefix(memberOf, "in:"), ",") {
			members[agg] = true
		}
	}
	name := c.Query("name")
	uid := c.Query("uuid")

	docs := []gin.H{}
	for _, p := range s.sortedProvidersLocked() {
		if name != "" && p.Name != name {
			continue
		}
		if uid != "" && p.UUID != uid {
			continue
		}
		if members != nil && !s.memberLocked(p.UUID, members) {
			continue
		}
		docs = append(docs, s.providerDocLocked(p))
	}
	c.JSON(http.StatusOK, gin.H{"resource_providers": docs})
}

func (s *Server) createProvider(c *gin.Context) {
	var body struct {
		Name   string `json:"name"`
		UUID   string `json:"uuid"`
		Parent string `json:"parent_provider_uuid"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "malformed provider payload: "+err.Error())
		return
	}
	if body.UUID == "" {
		body.UUID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[body.UUID]; ok {
		apiError(c, http.StatusConflict,
			fmt.Sprintf("Conflicting resource provider %s already exists", body.UUID))
		return
	}
	if body.Parent != "" {
		if _, ok := s.providers[body.Parent]; !ok {
			apiError(c, http.StatusBadRequest,
				fmt.Sprintf("parent provider %s does not exist", body.Parent))
			return
		}
	}
	p := &Provider{UUID: body.UUID, Name: body.Name, Parent: body.Parent}
	s.providers[p.UUID] = p

	c.Header("Location", "/resource_providers/"+p.UUID)
	if atLeast(c, "1.20") {
		c.JSON(http.StatusOK, s.providerDocLocked(p))
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) showProvider(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	c.JSON(http.StatusOK, s.providerDocLocked(p))
}

func (s *Server) updateProvider(c *gin.Context) {
	uid := c.Param("uuid")
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "malformed provider payload: "+err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	p.Name = body.Name
	c.JSON(http.StatusOK, s.providerDocLocked(p))
}

func (s *Server) deleteProvider(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[uid]; !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	delete(s.providers, uid)
	delete(s.inventories, uid)
	delete(s.aggregates, uid)
	delete(s.rpTraits, uid)
	delete(s.usages, uid)
	c.Status(http.StatusNoContent)
}

func (s *Server) listInventories(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"inventories":                  s.inventoryDocsLocked(uid),
		"resource_provider_generation": p.Generation,
	})
}

func (s *Server) replaceInventories(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	if fail, rigged := s.inventoryPutFailures[uid]; rigged {
		apiError(c, fail.status, fail.detail)
		return
	}

	var body struct {
		Inventories map[string]Inventory `json:"inventories"`
		Generation  *int64               `json:"resource_provider_generation"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "malformed inventory payload: "+err.Error())
		return
	}
	if body.Generation != nil && *body.Generation != p.Generation {
		apiError(c, http.StatusConflict,
			fmt.Sprintf("resource provider generation conflict: expected %d", p.Generation))
		return
	}
	if body.Inventories == nil {
		body.Inventories = map[string]Inventory{}
	}
	s.inventories[uid] = body.Inventories
	p.Generation++
	c.JSON(http.StatusOK, gin.H{
		"inventories":                  s.inventoryDocsLocked(uid),
		"resource_provider_generation": p.Generation,
	})
}

func (s *Server) deleteInventories(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	delete(s.inventories, uid)
	p.Generation++
	c.Status(http.StatusNoContent)
}

func (s *Server) showInventory(c *gin.Context) {
	uid := c.Param("uuid")
	class := c.Param("class")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	inv, ok := s.inventories[uid][class]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No inventory of class %s for %s", class, uid))
		return
	}
	doc := inventoryDoc(inv)
	doc["resource_provider_generation"] = p.Generation
	c.JSON(http.StatusOK, doc)
}

func (s *Server) replaceInventory(c *gin.Context) {
	uid := c.Param("uuid")
	class := c.Param("class")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	var body struct {
		Inventory
		Generation *int64 `json:"resource_provider_generation"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "malformed inventory payload: "+err.Error())
		return
	}
	if body.Generation != nil && *body.Generation != p.Generation {
		apiError(c, http.StatusConflict,
			fmt.Sprintf("resource provider generation conflict: expected %d", p.Generation))
		return
	}
	m := s.inventories[uid]
	if m == nil {
		m = map[string]Inventory{}
		s.inventories[uid] = m
	}
	m[class] = body.Inventory
	p.Generation++
	doc := inventoryDoc(body.Inventory)
	doc["resource_provider_generation"] = p.Generation
	c.JSON(http.StatusOK, doc)
}

func (s *Server) deleteInventory(c *gin.Context) {
	uid := c.Param("uuid")
	class := c.Param("class")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	if _, ok := s.inventories[uid][class]; !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No inventory of class %s for %s", class, uid))
		return
	}
	delete(s.inventories[uid], class)
	p.Generation++
	c.Status(http.StatusNoContent)
}

func (s *Server) listAggregates(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	doc := gin.H{"aggregates": s.aggregateListLocked(uid)}
	if atLeast(c, "1.19") {
		doc["resource_provider_generation"] = p.Generation
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) replaceAggregates(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}

	if atLeast(c, "1.19") {
		var body struct {
			Aggregates []string `json:"aggregates"`
			Generation *int64   `json:"resource_provider_generation"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			apiError(c, http.StatusBadRequest, "malformed aggregates payload: "+err.Error())
			return
		}
		if body.Generation == nil || *body.Generation != p.Generation {
			apiError(c, http.StatusConflict,
				fmt.Sprintf("resource provider generation conflict: expected %d", p.Generation))
			return
		}
		s.aggregates[uid] = append([]string(nil), body.Aggregates...)
		p.Generation++
		c.JSON(http.StatusOK, gin.H{
			"aggregates":                   s.aggregateListLocked(uid),
			"resource_provider_generation": p.Generation,
		})
		return
	}

	var aggs []string
	if err := c.ShouldBindJSON(&aggs); err != nil {
		apiError(c, http.StatusBadRequest, "malformed aggregates payload: "+err.Error())
		return
	}
	s.aggregates[uid] = append([]string(nil), aggs...)
	c.JSON(http.StatusOK, gin.H{"aggregates": s.aggregateListLocked(uid)})
}

func (s *Server) listProviderTraits(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"traits":                       s.providerTraitListLocked(uid),
		"resource_provider_generation": p.Generation,
	})
}

func (s *Server) replaceProviderTraits(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	var body struct {
		Traits     []string `json:"traits"`
		Generation *int64   `json:"resource_provider_generation"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "malformed traits payload: "+err.Error())
		return
	}
	if body.Generation != nil && *body.Generation != p.Generation {
		apiError(c, http.StatusConflict,
			fmt.Sprintf("resource provider generation conflict: expected %d", p.Generation))
		return
	}
	var unknown []string
	for _, name := range body.Traits {
		if !contains(s.traits, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		apiError(c, http.StatusBadRequest,
			fmt.Sprintf("No such trait(s): %s", strings.Join(unknown, ", ")))
		return
	}
	s.rpTraits[uid] = append([]string(nil), body.Traits...)
	p.Generation++
	c.JSON(http.StatusOK, gin.H{
		"traits":                       s.providerTraitListLocked(uid),
		"resource_provider_generation": p.Generation,
	})
}

func (s *Server) deleteProviderTraits(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	delete(s.rpTraits, uid)
	p.Generation++
	c.Status(http.StatusNoContent)
}

func (s *Server) showUsages(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	usages := gin.H{}
	for class, used := range s.usages[uid] {
		usages[class] = used
	}
	c.JSON(http.StatusOK, gin.H{
		"usages":                       usages,
		"resource_provider_generation": p.Generation,
	})
}

func (s *Server) providerAllocations(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[uid]
	if !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No resource provider with uuid %s found", uid))
		return
	}
	allocs := gin.H{}
	for consumer, rec := range s.consumers {
		if resources, ok := rec.Allocations[uid]; ok {
			allocs[consumer] = gin.H{"resources": resources}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"allocations":                  allocs,
		"resource_provider_generation": p.Generation,
	})
}

func (s *Server) listTraits(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := append([]string(nil), s.traits...)

	if filter := c.Query("name"); filter != "" {
		if prefix, ok := strings.CutPrefix(filter, "startswith:"); ok {
			kept := names[:0]
			for _, n := range names {
				if strings.HasPrefix(n, prefix) {
					kept = append(kept, n)
				}
			}
			names = kept
		} else if list, ok := strings.CutPrefix(filter, "in:"); ok {
			want := map[string]bool{}
			for _, n := range strings.Split(list, ",") {
				want[n] = true
			}
			kept := names[:0]
			for _, n := range names {
				if want[n] {
					kept = append(kept, n)
				}
			}
			names = kept
		}
	}
	if c.Query("associated") == "true" {
		assigned := map[string]bool{}
		for _, list := range s.rpTraits {
			for _, n := range list {
				assigned[n] = true
			}
		}
		kept := names[:0]
		for _, n := range names {
			if assigned[n] {
				kept = append(kept, n)
			}
		}
		names = kept
	}
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"traits": names})
}

func (s *Server) showTrait(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !contains(s.traits, name) {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No trait %s found", name))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) putTrait(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	if contains(s.traits, name) {
		c.Status(http.StatusNoContent)
		return
	}
	s.traits = append(s.traits, name)
	c.Status(http.StatusCreated)
}

func (s *Server) deleteTrait(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.traits {
		if n == name {
			s.traits = append(s.traits[:i], s.traits[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	apiError(c, http.StatusNotFound, fmt.Sprintf("No trait %s found", name))
}

func (s *Server) listClasses(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := []gin.H{}
	for _, n := range s.classes {
		docs = append(docs, gin.H{"name": n})
	}
	c.JSON(http.StatusOK, gin.H{"resource_classes": docs})
}

func (s *Server) createClass(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "malformed resource class payload: "+err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if contains(s.classes, body.Name) {
		apiError(c, http.StatusConflict,
			fmt.Sprintf("Conflicting resource class already exists: %s", body.Name))
		return
	}
	s.classes = append(s.classes, body.Name)
	c.Header("Location", "/resource_classes/"+body.Name)
	c.Status(http.StatusCreated)
}

func (s *Server) showClass(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !contains(s.classes, name) {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No such resource class %s", name))
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (s *Server) putClass(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	if contains(s.classes, name) {
		c.Status(http.StatusNoContent)
		return
	}
	s.classes = append(s.classes, name)
	c.Status(http.StatusCreated)
}

func (s *Server) deleteClass(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.classes {
		if n == name {
			s.classes = append(s.classes[:i], s.classes[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	apiError(c, http.StatusNotFound, fmt.Sprintf("No such resource class %s", name))
}

func (s *Server) showAllocations(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.consumers[uid]
	allocs := gin.H{}
	if ok {
		for rp, resources := range rec.Allocations {
			var gen int64
			if p := s.providers[rp]; p != nil {
				gen = p.Generation
			}
			allocs[rp] = gin.H{"resources": resources, "generation": gen}
		}
	}
	doc := gin.H{"allocations": allocs}
	if ok && atLeast(c, "1.12") {
		doc["project_id"] = rec.ProjectID
		doc["user_id"] = rec.UserID
	}
	if ok && atLeast(c, "1.28") {
		doc["consumer_generation"] = rec.Generation
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) replaceAllocations(c *gin.Context) {
	uid := c.Param("uuid")

	allocations := map[string]map[string]int64{}
	var projectID, userID string
	var consumerGeneration *int64

	if atLeast(c, "1.12") {
		var body struct {
			Allocations map[string]struct {
				Resources map[string]int64 `json:"resources"`
			} `json:"allocations"`
			ProjectID  string `json:"project_id"`
			UserID     string `json:"user_id"`
			Generation *int64 `json:"consumer_generation"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			apiError(c, http.StatusBadRequest, "malformed allocations payload: "+err.Error())
			return
		}
		for rp, entry := range body.Allocations {
			allocations[rp] = entry.Resources
		}
		projectID, userID = body.ProjectID, body.UserID
		consumerGeneration = body.Generation
	} else {
		var body struct {
			Allocations []struct {
				ResourceProvider struct {
					UUID string `json:"uuid"`
				} `json:"resource_provider"`
				Resources map[string]int64 `json:"resources"`
			} `json:"allocations"`
			ProjectID string `json:"project_id"`
			UserID    string `json:"user_id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			apiError(c, http.StatusBadRequest, "malformed allocations payload: "+err.Error())
			return
		}
		for _, entry := range body.Allocations {
			allocations[entry.ResourceProvider.UUID] = entry.Resources
		}
		projectID, userID = body.ProjectID, body.UserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for rp := range allocations {
		if _, ok := s.providers[rp]; !ok {
			apiError(c, http.StatusConflict, fmt.Sprintf("resource provider %s does not exist", rp))
			return
		}
	}
	prev := s.consumers[uid]
	if atLeast(c, "1.28") {
		switch {
		case prev == nil && consumerGeneration != nil:
			apiError(c, http.StatusConflict, "consumer generation conflict: consumer is new")
			return
		case prev != nil && (consumerGeneration == nil || *consumerGeneration != prev.Generation):
			apiError(c, http.StatusConflict,
				fmt.Sprintf("consumer generation conflict: expected %d", prev.Generation))
			return
		}
	}
	if len(allocations) == 0 {
		delete(s.consumers, uid)
		c.Status(http.StatusNoContent)
		return
	}
	var gen int64 = 1
	if prev != nil {
		gen = prev.Generation + 1
		if projectID == "" {
			projectID = prev.ProjectID
		}
		if userID == "" {
			userID = prev.UserID
		}
	}
	s.consumers[uid] = &AllocationRecord{
		Allocations: allocations,
		ProjectID:   projectID,
		UserID:      userID,
		Generation:  gen,
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteAllocations(c *gin.Context) {
	uid := c.Param("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consumers[uid]; !ok {
		apiError(c, http.StatusNotFound, fmt.Sprintf("No allocations for consumer %s", uid))
		return
	}
	delete(s.consumers, uid)
	c.Status(http.StatusNoContent)
}

func (s *Server) listCandidates(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resources := c.Query("resources")
	if resources == "" {
		apiError(c, http.StatusBadRequest, "resources query parameter is required")
		return
	}
	wanted := map[string]int64{}
	for _, part := range strings.Split(resources, ",") {
		class, amount, ok := strings.Cut(part, ":")
		if !ok {
			apiError(c, http.StatusBadRequest, "malformed resources query: "+part)
			return
		}
		n, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			apiError(c, http.StatusBadRequest, "malformed resources query: "+part)
			return
		}
		wanted[class] = n
	}

	var fits []*Provider
	for _, p := range s.sortedProvidersLocked() {
		inv := s.inventories[p.UUID]
		serves := true
		for class := range wanted {
			if _, ok := inv[class]; !ok {
				serves = false
				break
			}
		}
		if serves {
			fits = append(fits, p)
		}
	}
	if lim := c.Query("limit"); lim != "" {
		if n, err := strconv.Atoi(lim); err == nil && n >= 0 && n < len(fits) {
			fits = fits[:n]
		}
	}

	summaries := gin.H{}
	for _, p := range fits {
		res := gin.H{}
		for class := range wanted {
			inv := s.inventories[p.UUID][class]
			capacity := inv.Total - inv.Reserved
			if inv.AllocationRatio > 0 {
				capacity = int64(float64(capacity) * inv.AllocationRatio)
			}
			res[class] = gin.H{"used": s.usages[p.UUID][class], "capacity": capacity}
		}
		summaries[p.UUID] = gin.H{"resources": res}
	}

	reqs := []gin.H{}
	if atLeast(c, "1.12") {
		for _, p := range fits {
			reqs = append(reqs, gin.H{"allocations": gin.H{
				p.UUID: gin.H{"resources": wanted},
			}})
		}
	} else {
		for _, p := range fits {
			reqs = append(reqs, gin.H{"allocations": []gin.H{{
				"resource_provider": gin.H{"uuid": p.UUID},
				"resources":         wanted,
			}}})
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"allocation_requests": reqs,
		"provider_summaries":  summaries,
	})
}

func (s *Server) sortedProvidersLocked() []*Provider {
	list := make([]*Provider, 0, len(s.providers))
	for _, p := range s.providers {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].UUID < list[j].UUID
	})
	return list
}

func (s *Server) memberLocked(rpUUID string, members map[string]bool) bool {
	for _, agg := range s.aggregates[rpUUID] {
		if members[agg] {
			return true
		}
	}
	return false
}

func (s *Server) rootOfLocked(rpUUID string) string {
	seen := map[string]bool{}
	for {
		p := s.providers[rpUUID]
		if p == nil || p.Parent == "" || seen[rpUUID] {
			return rpUUID
		}
		seen[rpUUID] = true
		rpUUID = p.Parent
	}
}

func (s *Server) providerDocLocked(p *Provider) gin.H {
	var parent any
	if p.Parent != "" {
		parent = p.Parent
	}
	return gin.H{
		"uuid":                 p.UUID,
		"name":                 p.Name,
		"generation":           p.Generation,
		"root_provider_uuid":   s.rootOfLocked(p.UUID),
		"parent_provider_uuid": parent,
	}
}

func (s *Server) inventoryDocsLocked(rpUUID string) gin.H {
	docs := gin.H{}
	for class, inv := range s.inventories[rpUUID] {
		docs[class] = inventoryDoc(inv)
	}
	return docs
}

func (s *Server) aggregateListLocked(rpUUID string) []string {
	list := append([]string(nil), s.aggregates[rpUUID]...)
	sort.Strings(list)
	if list == nil {
		list = []string{}
	}
	return list
}

func (s *Server) providerTraitListLocked(rpUUID string) []string {
	list := append([]string(nil), s.rpTraits[rpUUID]...)
	sort.Strings(list)
	if list == nil {
		list = []string{}
	}
	return list
}

func inventoryDoc(inv Inventory) gin.H {
	return gin.H{
		"allocation_ratio": inv.AllocationRatio,
		"min_unit":         inv.MinUnit,
		"max_unit":         inv.MaxUnit,
		"reserved":         inv.Reserved,
		"step_size":        inv.StepSize,
		"total":            inv.Total,
	}
}
