package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StripeHooks/app/models"
)

type ruleRequest struct {
	ProductID   string `json:"product_id" form:"product_id"`
	Channel     string `json:"channel" form:"channel"`
	Destination string `json:"destination" form:"destination"`
}

// HandleListRules returns all rules grouped by product, plus the product
// names Stripe knows when an API key is configured.
func (ac *AdminController) HandleListRules(c *fiber.Ctx) error {
	ctx := c.UserContext()
	grouped, err := ac.repos.Rule.ListAllGrouped(ctx)
	if err != nil {
		log.Errorf("[Admin] Listing rules failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "rules_unavailable")
	}

	products := map[string]string{}
	snap, err := ac.repos.Setting.Snapshot(ctx)
	if err == nil && snap.StripeAPIKey() != "" {
		names, err := ac.newStripe(snap.StripeAPIKey()).ProductNames(ctx)
		if err != nil {
			log.Warnf("[Admin] Listing Stripe products failed: %v", err)
		} else {
			products = names
		}
	}

	return c.JSON(fiber.Map{"rules": grouped, "products": products})
}

// HandleCreateRule adds a rule. Re-adding an existing rule answers 200 with
// the stored row instead of 201.
func (ac *AdminController) HandleCreateRule(c *fiber.Ctx) error {
	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", err.Error())
	}

	rule := &models.NotificationRule{
		ProductID:   req.ProductID,
		Channel:     models.RuleChannel(req.Channel),
		Destination: req.Destination,
	}
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_rule", err.Error())
	}

	created, err := ac.repos.Rule.Add(c.UserContext(), rule)
	if err != nil {
		log.Errorf("[Admin] Adding rule for %s failed: %v", rule.ProductID, err)
		return jsonError(c, fiber.StatusInternalServerError, "rule_not_saved")
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
		log.Infof("[Admin] Rule %d added: %s -> %s %s", rule.ID, rule.ProductID, rule.Channel, rule.Destination)
	}
	return c.Status(status).JSON(fiber.Map{"rule": rule, "created": created})
}

func (ac *AdminController) HandleDeleteRule(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id")
	}
	deleted, err := ac.repos.Rule.Delete(c.UserContext(), id)
	if err != nil {
		log.Errorf("[Admin] Deleting rule %d failed: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "rule_not_deleted")
	}
	if !deleted {
		return jsonError(c, fiber.StatusNotFound, "rule_not_found")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// HandleToggleRule sets the enabled flag from the "enabled" field, or flips
// it when the field is absent.
func (ac *AdminController) HandleToggleRule(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id")
	}
	ctx := c.UserContext()

	rule, err := ac.repos.Rule.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusNotFound, "rule_not_found")
	}
	if err != nil {
		log.Errorf("[Admin] Loading rule %d failed: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "rules_unavailable")
	}

	enabled := !rule.Enabled
	if v, ok := parseBool(c.FormValue("enabled")); ok {
		enabled = v
	}
	if _, err := ac.repos.Rule.SetEnabled(ctx, id, enabled); err != nil {
		log.Errorf("[Admin] Toggling rule %d failed: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "rule_not_saved")
	}
	rule.Enabled = enabled
	return c.JSON(fiber.Map{"rule": rule})
}
