package main

// Blank imports activate the self-registering notifiers.

import (
	_ "github.com/Strob0t/Herald/internal/adapter/discord"
	_ "github.com/Strob0t/Herald/internal/adapter/slack"
)
