package workflow

// Selectors locate the portal's UI. They follow the portal's rendered DOM
// and are the first thing to update when its layout drifts.
type Selectors struct {
	TrainCards      string `yaml:"train_cards"`
	TrainLabels     string `yaml:"train_labels"`
	TrainCard       string `yaml:"train_card"`
	TicketButton    string `yaml:"ticket_button"`
	QuotaOptions    string `yaml:"quota_options"`
	ClassOptions    string `yaml:"class_options"`
	DateChips       string `yaml:"date_chips"`
	DateChipStatus  string `yaml:"date_chip_status"`
	FarePrice       string `yaml:"fare_price"`
	BookTicket      string `yaml:"book_ticket"`
	Confirm         string `yaml:"confirm"`
	PassengerRemove string `yaml:"passenger_remove"`
	AddPassenger    string `yaml:"add_passenger"`
	// GenderOption is a format string taking the gender label.
	GenderOption  string `yaml:"gender_option"`
	NameInput     string `yaml:"name_input"`
	AgeInput      string `yaml:"age_input"`
	ReviewJourney string `yaml:"review_journey"`
	DrawerAction  string `yaml:"drawer_action"`
	OTPInput      string `yaml:"otp_input"`
	OTPVerify     string `yaml:"otp_verify"`
	SignInButton  string `yaml:"signin_button"`
	SignInInput   string `yaml:"signin_input"`
	SignInSubmit  string `yaml:"signin_submit"`
}

// CardClass is the styled-components class carried by every train card.
const CardClass = "sc-gplwa-d"

// DefaultSelectors returns the XPaths for the current portal layout.
func DefaultSelectors() Selectors {
	return Selectors{
		TrainCards:      "//div[contains(@class, '" + CardClass + "')]",
		TrainLabels:     "//div[contains(@class, '" + CardClass + "')]//p",
		TrainCard:       "./ancestor::div[contains(@class, '" + CardClass + "')][1]",
		TicketButton:    ".//div[contains(@class, 'ticket-new')]",
		QuotaOptions:    "//p[text()='Quota']/following-sibling::div/div",
		ClassOptions:    "//p[text()='Class']/following-sibling::div/div",
		DateChips:       "//*[@id='disha-drawer-1']/div/div[1]/div[2]/div/div[6]/div",
		DateChipStatus:  "./div[2]/div",
		FarePrice:       "//*[@id='drawer-footer']/div/div/span",
		BookTicket:      "//button[contains(text(), 'BOOK TICKET')]",
		Confirm:         "//button[contains(text(), 'Confirm')]",
		PassengerRemove: "//*[@id='passengers']//*[contains(@class, 'delete') or contains(@aria-label, 'Remove')]",
		AddPassenger:    "//button[contains(text(), 'Add Passenger')]",
		GenderOption:    "//*[@id='passengers']//*[not(*) and normalize-space(.)='%s']",
		NameInput:       "//*[@id='name']",
		AgeInput:        "//*[@id='age']",
		ReviewJourney:   "//*[@id='pass-step']/button",
		DrawerAction:    "//*[@id='drawer-footer']/div/button",
		OTPInput:        "//*[@id='disha-drawer-2']/div/div[1]/div[2]/div/div/div[1]/input",
		OTPVerify:       "//*[@id='disha-drawer-2']/div/div[1]/div[2]/div/div/div[2]/button[1]",
		SignInButton:    "//*[@id='corover-body']/div[1]/div/div[2]/button/span",
		SignInInput:     "//*[@id='disha-drawer-1']/div/div[1]/div[2]/div/div/div[2]/input",
		SignInSubmit:    "//*[@id='drawer-footer']/span/button",
	}
}
