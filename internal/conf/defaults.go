// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "violations.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "addressfinder")
	viper.SetDefault("output.mysql.database", "addressfinder")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("upstream.endpoint", "https://data.wprdc.org/api/3/action/datastore_search_sql")
	viper.SetDefault("upstream.resourceid", "70c06278-92c5-4040-ab28-17671866f81c")
	viper.SetDefault("upstream.pagesize", 1000)
	viper.SetDefault("upstream.defaultepoch", "2024-01-01")
	viper.SetDefault("upstream.fullsyncepoch", "2020-01-01")

	viper.SetDefault("dashboard.baseurl", "https://violations.example.com")

	viper.SetDefault("notification.email.endpoint", "https://api.resend.com/emails")
	viper.SetDefault("notification.sms.endpoint", "https://api.twilio.com/2010-04-01/Accounts")
	viper.SetDefault("notification.push.gateway", "https://api.push.apple.com")
	viper.SetDefault("notification.push.maxconcurrent", 100)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", 8080)
}
