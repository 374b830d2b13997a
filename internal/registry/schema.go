package registry

// ServiceSchema describes one callable service for discovery purposes.
type ServiceSchema struct {
	Description string   `json:"description"`
	Fields      []string `json:"fields,omitempty"`
}

// DomainSchema maps service name to its schema.
type DomainSchema map[string]ServiceSchema

// defaultSchemaFor returns the schema installed automatically when a
// domain's engine is registered, per the default-schema table: the
// on/off/toggle trio for every switchable domain, plus each domain's
// additional services and fields.
func defaultSchemaFor(domain string) DomainSchema {
	schema := DomainSchema{}

	switch domain {
	case "light", "switch", "climate", "fan", "cover", "lock", "media_player":
		schema["turn_on"] = ServiceSchema{Description: "Turn the entity on"}
		schema["turn_off"] = ServiceSchema{Description: "Turn the entity off"}
		schema["toggle"] = ServiceSchema{Description: "Toggle the entity's on/off state"}
	}

	switch domain {
	case "light":
		schema["turn_on"] = ServiceSchema{
			Description: "Turn the light on",
			Fields:      []string{"brightness", "color_temp", "rgb_color", "effect"},
		}
	case "climate":
		schema["set_temperature"] = ServiceSchema{Description: "Set target temperature", Fields: []string{"temperature", "hvac_mode"}}
		schema["set_hvac_mode"] = ServiceSchema{Description: "Set HVAC mode", Fields: []string{"hvac_mode"}}
		schema["set_preset_mode"] = ServiceSchema{Description: "Set preset mode", Fields: []string{"preset_mode"}}
		schema["set_fan_mode"] = ServiceSchema{Description: "Set fan mode", Fields: []string{"fan_mode"}}
		schema["set_humidity"] = ServiceSchema{Description: "Set target humidity", Fields: []string{"humidity"}}
	case "cover":
		schema["open_cover"] = ServiceSchema{Description: "Open the cover"}
		schema["close_cover"] = ServiceSchema{Description: "Close the cover"}
		schema["stop_cover"] = ServiceSchema{Description: "Stop the cover mid-travel"}
		schema["set_cover_position"] = ServiceSchema{Description: "Set cover position", Fields: []string{"position"}}
	case "binary_sensor":
		schema["test"] = ServiceSchema{Description: "Manually trigger a binary sensor for testing"}
	}

	return schema
}
