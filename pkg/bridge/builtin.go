package bridge

// builtinBaselines returns the module-provided baseline definitions. These
// are always present; user overrides layer on top of them.
func builtinBaselines() map[cacheKey]Payload {
	baselines := map[cacheKey]Payload{
		{kind: KindTheme, key: "Dark"}: {
			"name":       "Dark",
			"background": "#1e1e1e",
			"foreground": "#d4d4d4",
			"font":       map[string]interface{}{"face": "monospace", "size": 11},
			"schemes": []interface{}{
				map[string]interface{}{"name": "Campbell", "cursor": "#ffffff"},
				map[string]interface{}{"name": "OneHalfDark", "cursor": "#dcdfe4"},
			},
		},
		{kind: KindTheme, key: "Light"}: {
			"name":       "Light",
			"background": "#ffffff",
			"foreground": "#1f1f1f",
			"font":       map[string]interface{}{"face": "monospace", "size": 11},
			"schemes": []interface{}{
				map[string]interface{}{"name": "OneHalfLight", "cursor": "#383a42"},
			},
		},
		{kind: KindProfile, key: "bash"}: {
			"id":    "bash",
			"shell": "/bin/bash",
			"files": []interface{}{"~/.bashrc", "~/.profile"},
		},
		{kind: KindProfile, key: "zsh"}: {
			"id":    "zsh",
			"shell": "/bin/zsh",
			"files": []interface{}{"~/.zshrc"},
		},
		{kind: KindCategory, key: "developer"}: {
			"name":    "developer",
			"version": "1.0",
			"items": []interface{}{
				"git", "curl", "jq", "make",
			},
		},
		{kind: KindCategory, key: "shell"}: {
			"name":    "shell",
			"version": "1.0",
			"items": []interface{}{
				map[string]interface{}{
					"name": "aliases",
					"type": "profile",
					"properties": map[string]interface{}{
						"path": "~/.profile",
						"line": "alias ll='ls -al'",
					},
				},
			},
		},
	}
	return baselines
}
