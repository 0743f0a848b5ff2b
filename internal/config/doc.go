// Package config provides configuration parsing for storefront clients.
//
// The configuration is stored in storefront.json in the working directory.
// Values from a .env file and from STOREFRONT_* environment variables are
// applied on top of the file, in that order.
//
// # Configuration File Structure
//
//	{
//	  "api": {
//	    "baseURL": "http://localhost:5000",
//	    "timeout": "15s"
//	  },
//	  "storage": {
//	    "driver": "file",
//	    "dir": ".storefront"
//	  },
//	  "cart": {
//	    "key": "cart"
//	  },
//	  "gateway": {
//	    "host": "localhost",
//	    "port": 8080,
//	    "contextTTL": "30m"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("API:", cfg.API.BaseURL)
package config
